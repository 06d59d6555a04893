// Package store defines the port the memory-store API uses to persist and
// list blobs in the opaque content-addressed container, independent of the
// backing object-storage implementation.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrBlobExists is returned by Put when the key already has an object — the
// memory store's append-only guarantee: once written, a key's content is
// immutable.
var ErrBlobExists = errors.New("store: blob already exists for this key")

// Metadata is the set of string flags attached to a blob (analyzed,
// approved, run_id, run_start, ...).
type Metadata map[string]string

// ListedBlob is one entry returned by ListByPrefix.
type ListedBlob struct {
	Name         string
	LastModified time.Time
	Metadata     Metadata
}

// Store is the port the proxy core's memory-store API depends on.
type Store interface {
	// Put writes bytes under key with the given content type and metadata.
	// It returns ErrBlobExists if key is already present — callers must
	// never observe a blind overwrite.
	Put(ctx context.Context, key string, data []byte, contentType string, meta Metadata) error

	// Get downloads the object at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// ListByPrefix lists all keys under prefix, optionally including
	// per-key metadata.
	ListByPrefix(ctx context.Context, prefix string, includeMetadata bool) ([]ListedBlob, error)

	// SetMetadata replaces the metadata on an existing key (used by the
	// out-of-band analyzer to flip analyzed/approved).
	SetMetadata(ctx context.Context, key string, meta Metadata) error
}
