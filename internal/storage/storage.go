// Package storage stores upload bundles. Files are addressed by keys of the
// form {panelId}/{monthName}/{uploadId}/{file}; during ingestion they are
// first written under a staging prefix and moved to their final keys only
// after the database rows commit.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
)

// StagingPrefix is the key prefix holding files that have been written but
// not yet published.
const StagingPrefix = ".staging"

// ErrNotExist is returned when a requested object does not exist.
var ErrNotExist = errors.New("object does not exist")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Move renames an object. Implementations copy-then-delete when the
	// backing store has no atomic rename.
	Move(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under the prefix. Removing a
	// prefix with no objects is not an error.
	DeletePrefix(ctx context.Context, prefix string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Move renames an object within the configured bucket.
func (s *Storage) Move(ctx context.Context, src, dst string) error {
	return s.backend.Move(ctx, src, dst)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// DeletePrefix removes every object under the prefix.
func (s *Storage) DeletePrefix(ctx context.Context, prefix string) error {
	return s.backend.DeletePrefix(ctx, prefix)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// UploadPrefix returns the key prefix holding one upload's files.
func UploadPrefix(panelID, monthName, uploadID string) string {
	return path.Join(panelID, monthName, uploadID)
}

// StagingKey returns the staging key for one file of an upload.
func StagingKey(uploadID, name string) string {
	return path.Join(StagingPrefix, uploadID, name)
}
