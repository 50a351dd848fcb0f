// Package storage holds document bytes in an object store keyed by
// conversation. Database rows reference objects by bucket and key; the store
// never parses document content.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore abstracts the blob backend. Production runs on GCS; local
// installs use the filesystem store.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key string, expires time.Duration) (string, error)
	Bucket() string
	Close() error
}
