package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FilesystemStore keeps objects under a local directory. It backs single-box
// installs where the sqlite driver is in use and no GCS bucket exists.
type FilesystemStore struct {
	root string
}

// NewFilesystem creates a filesystem-backed object store rooted at dir.
func NewFilesystem(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create root %s", dir)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", eris.Errorf("storage: invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FilesystemStore) Upload(_ context.Context, key, _ string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return eris.Wrapf(err, "storage: create dir for %s", key)
	}

	f, err := os.Create(p)
	if err != nil {
		return eris.Wrapf(err, "storage: create object %s", key)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "storage: write object %s", key)
	}
	return eris.Wrapf(f.Close(), "storage: close object %s", key)
}

func (s *FilesystemStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: open object %s", key)
	}
	return f, nil
}

func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return eris.Wrapf(os.Remove(p), "storage: delete object %s", key)
}

// SignedURL returns a file path; local installs serve documents through the
// API rather than redirecting to the store.
func (s *FilesystemStore) SignedURL(key string, _ time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	return "file://" + p, nil
}

func (s *FilesystemStore) Bucket() string {
	return s.root
}

func (s *FilesystemStore) Close() error {
	return nil
}
