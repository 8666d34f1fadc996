// Package advisory orchestrates the cropwise workflows: validating soil
// samples, ranking crops, diagnosing uploaded leaf images, and recording
// results.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cropwise/cropwise/pkg/config"
)

// ErrImageNotFound is returned by GetImage for keys that were never stored.
var ErrImageNotFound = errors.New("image not found")

// imageCacheControl marks stored images immutable; keys are never reused.
const imageCacheControl = "public, max-age=31536000, immutable"

// ImageStorage abstracts blob storage for uploaded images.
type ImageStorage interface {
	PutImage(ctx context.Context, key, contentType string, data []byte) error
	GetImage(ctx context.Context, key string) ([]byte, error)
}

// LocalStorage implements ImageStorage using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(key)), nil
}

// PutImage stores an image blob. The content type is not persisted locally.
func (s *LocalStorage) PutImage(ctx context.Context, key, contentType string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetImage retrieves an image blob.
func (s *LocalStorage) GetImage(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, key)
	}
	return data, err
}

// NewStorage selects the backend named in cfg.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (ImageStorage, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.LocalPath
		if dir == "" {
			dir = config.UploadDir()
		}
		return NewLocalStorage(dir), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		s, err := NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		s, err := NewGCSStorage(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want local, s3 or gcs)", cfg.Backend)
	}
}
