// Package gcs implements storage connections on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/epiflow/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// ProviderType is the value of `type` that selects this provider.
const ProviderType = "gcs"

type gcsAdapter struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    storageConfig.StorageConfig
	name   string
}

var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// NewGCSAdapter wraps an existing client. The connection owns the client and closes it.
func NewGCSAdapter(client *storage.Client, cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': bucket_name must be specified", name)
	}
	return &gcsAdapter{
		client: client,
		bucket: client.Bucket(cfg.BucketName),
		cfg:    cfg,
		name:   name,
	}, nil
}

func (a *gcsAdapter) Close() error { return a.client.Close() }
func (a *gcsAdapter) Type() string { return ProviderType }
func (a *gcsAdapter) Name() string { return a.name }

func (a *gcsAdapter) objectPath(objectName string) string {
	return path.Join(a.cfg.Prefix, objectName)
}

// Upload streams data to the object. The object only becomes visible when the
// writer closes successfully; a failed copy cancels the write.
func (a *gcsAdapter) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	key := a.objectPath(objectName)
	w := a.bucket.Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", a.cfg.BucketName, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", a.cfg.BucketName, key, err)
	}
	logger.Debugf("Wrote gs://%s/%s (gcs adapter '%s').", a.cfg.BucketName, key, a.name)
	return nil
}

func (a *gcsAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	key := a.objectPath(objectName)
	r, err := a.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", a.cfg.BucketName, key, err)
	}
	return r, nil
}

func (a *gcsAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	full := a.objectPath(prefix)
	if strings.HasSuffix(prefix, "/") || (prefix == "" && a.cfg.Prefix != "") {
		full += "/"
	}
	if full == "/" {
		full = ""
	}

	it := a.bucket.Objects(ctx, &storage.Query{Prefix: full})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list gs://%s/%s: %w", a.cfg.BucketName, full, err)
		}
		name := attrs.Name
		if a.cfg.Prefix != "" {
			name = strings.TrimPrefix(strings.TrimPrefix(name, a.cfg.Prefix), "/")
		}
		if err := fn(name); err != nil {
			return err
		}
	}
}

func (a *gcsAdapter) DeleteObject(ctx context.Context, objectName string) error {
	key := a.objectPath(objectName)
	if err := a.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", a.cfg.BucketName, key, err)
	}
	return nil
}

// GCSProvider opens GCS connections.
type GCSProvider struct {
	// clientOptions are appended to the options derived from the connection config.
	clientOptions []option.ClientOption
}

// NewGCSProvider creates a GCSProvider.
func NewGCSProvider(opts ...option.ClientOption) *GCSProvider {
	return &GCSProvider{clientOptions: opts}
}

// Type implements storage.StorageProvider.
func (p *GCSProvider) Type() string { return ProviderType }

// Connect implements storage.StorageProvider.
func (p *GCSProvider) Connect(ctx context.Context, name string, properties map[string]interface{}) (storageAdapter.StorageConnection, error) {
	cfg, err := storageConfig.Decode(properties)
	if err != nil {
		return nil, err
	}
	if cfg.Type != ProviderType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, ProviderType, cfg.Type)
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': bucket_name must be specified", name)
	}

	opts := clientOptionsFor(cfg)
	opts = append(opts, p.clientOptions...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	logger.Debugf("GCS storage '%s' on bucket '%s'.", name, cfg.BucketName)
	return NewGCSAdapter(client, cfg, name)
}

func clientOptionsFor(cfg storageConfig.StorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

var _ storageAdapter.StorageProvider = (*GCSProvider)(nil)
