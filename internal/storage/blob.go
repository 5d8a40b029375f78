// Package storage provides the blob store collaborator the claim engine uses
// for line-item attachments.
package storage

import "context"

// FileMeta describes an upload before it is stored
type FileMeta struct {
	Name  string
	Mime  string
	Label string
}

// StoredFile is the durable handle the blob store returns. StorageKey uniquely
// identifies the content and is the only thing needed to remove it later.
type StoredFile struct {
	FileID     string
	StorageKey string
	Size       int64
	Mime       string
}

// BlobStore persists attachment bytes. Removal is best-effort: deleting a key
// that no longer exists is not an error.
type BlobStore interface {
	Save(ctx context.Context, content []byte, meta FileMeta) (*StoredFile, error)
	Remove(ctx context.Context, storageKey string) error
}
