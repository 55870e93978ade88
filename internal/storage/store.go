// Package storage provides blob store access for source images: a local
// filesystem backend for development and an S3 backend for production.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotSupported is returned by operations a backend cannot provide
// (e.g. public URLs from the local filesystem store).
var ErrNotSupported = errors.New("operation not supported by this storage backend")

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// FileInfo describes one object in a listing.
type FileInfo struct {
	// Path is the full key/path of the object within the store.
	Path string
	// Name is the base filename.
	Name string
	// Size is the object size in bytes.
	Size int64
	// CreatedAt is the object's creation (or last-modified) time as reported
	// by the backend.
	CreatedAt time.Time
	// IsDir marks folder placeholder entries; listings of flat object stores
	// report these for trailing-slash keys.
	IsDir bool
}

// Store is the blob store collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	// Download retrieves an object's bytes.
	Download(ctx context.Context, path string) ([]byte, error)
	// Upload writes bytes to a path, returning the stored path and size.
	Upload(ctx context.Context, data []byte, path string) (string, int64, error)
	// Delete removes an object, reporting whether it existed.
	Delete(ctx context.Context, path string) (bool, error)
	// Exists reports whether an object exists.
	Exists(ctx context.Context, path string) (bool, error)
	// GetURL returns a URL for an object. Local-only backends return
	// ErrNotSupported.
	GetURL(ctx context.Context, path string) (string, error)
	// List enumerates objects under a prefix, non-recursively for folder
	// semantics where the backend supports it.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
