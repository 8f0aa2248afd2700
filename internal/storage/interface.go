package storage

import (
	"context"
	"io"
)

// ObjectStorage archives enrollment captures, gallery backups and exports.
type ObjectStorage interface {
	// Upload stores an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object.
	GetURL(key string) string

	// Exists reports whether an object exists.
	Exists(ctx context.Context, key string) (bool, error)
}
