package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore implements BlobStore on the local filesystem. Content is stored
// under a content-hash key so the same bytes always map to the same path.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStore creates a LocalStore rooted at baseDir
func NewLocalStore(baseDir string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

// Save writes the content under a content-addressed key
func (s *LocalStore) Save(ctx context.Context, content []byte, meta FileMeta) (*StoredFile, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	key := filepath.Join(hash[:2], hash+filepath.Ext(meta.Name))

	fullPath := filepath.Join(s.baseDir, key)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create attachment directory",
			zap.String("path", filepath.Dir(fullPath)), zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Attachment stored",
		zap.String("key", key),
		zap.Int("size", len(content)))

	return &StoredFile{
		FileID:     hash,
		StorageKey: key,
		Size:       int64(len(content)),
		Mime:       meta.Mime,
	}, nil
}

// Remove deletes the stored content. A missing key is not an error.
func (s *LocalStore) Remove(ctx context.Context, storageKey string) error {
	fullPath := filepath.Join(s.baseDir, storageKey)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}

// validatePath rejects keys that would escape the base directory
func (s *LocalStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
