package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Config holds configuration for S3-compatible object storage
type S3Config struct {
	Endpoint  string // optional, for S3-compatible providers
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string // key prefix within the bucket
}

// S3Store implements BlobStore on S3-compatible object storage
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store creates an S3Store for the configured bucket
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Save uploads the content under a content-addressed key
func (s *S3Store) Save(ctx context.Context, content []byte, meta FileMeta) (*StoredFile, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	key := path.Join(s.prefix, hash[:2], hash+path.Ext(meta.Name))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(meta.Mime),
	})
	if err != nil {
		s.logger.Error("Failed to upload attachment",
			zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	s.logger.Debug("Attachment uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(content)))

	return &StoredFile{
		FileID:     hash,
		StorageKey: key,
		Size:       int64(len(content)),
		Mime:       meta.Mime,
	}, nil
}

// Remove deletes the object. S3 DeleteObject is a no-op for missing keys,
// which matches the best-effort contract.
func (s *S3Store) Remove(ctx context.Context, storageKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}
