package storage

import (
	"context"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCS creates a GCS-backed object store. With empty credentialsJSON the
// client falls back to application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsJSON string) (*GCSStore, error) {
	if bucket == "" {
		return nil, eris.New("storage: bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "storage: create gcs client")
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close() //nolint:errcheck
		return eris.Wrapf(err, "storage: write object %s", key)
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(err, "storage: finalize object %s", key)
	}
	return nil
}

func (s *GCSStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: open object %s", key)
	}
	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return eris.Wrapf(err, "storage: delete object %s", key)
	}
	return nil
}

func (s *GCSStore) SignedURL(key string, expires time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		return "", eris.Wrapf(err, "storage: sign url for %s", key)
	}
	return url, nil
}

func (s *GCSStore) Bucket() string {
	return s.bucket
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
