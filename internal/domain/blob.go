package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects from blob storage.
type BlobReader interface {
	// Get returns the object body; the caller closes it. Missing objects
	// map to ErrNotFound.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchiveExporter writes the full record of an archived market to durable
// storage. Export returns the storage path of the written object.
type ArchiveExporter interface {
	Export(ctx context.Context, m Market, p Pool, positions []Position, trades []Trade) (string, error)
}
