package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"driveo/pkg/config"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore keeps vehicle images and invoice PDFs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get returns the object body and content type. The caller closes the body.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by STORAGE_PROVIDER. It returns nil, nil for "none".
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageProvider {
	case config.StorageProviderS3:
		store, err := NewS3Store(ctx, S3Options{
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageProviderMinio:
		store, err := NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.StorageEndpoint,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

// NewKey returns prefix/<uuid><ext>, keeping the extension of filename.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return strings.TrimSuffix(prefix, "/") + "/" + uuid.NewString() + ext
}
