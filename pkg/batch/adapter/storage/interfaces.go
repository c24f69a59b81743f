// Package storage defines named storage connections. Stages read snapshot inputs
// from one connection and write artifacts to another; which backend sits behind a
// name (local filesystem, Google Cloud Storage) is a configuration concern.
package storage

import (
	"context"
	"io"
)

// StorageExecutor performs object operations. Object names use forward slashes.
type StorageExecutor interface {
	// Upload stores data under objectName. Readers never observe a partially written object.
	Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error
	// Download opens objectName for reading. The caller closes the reader.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object whose name starts with prefix.
	ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, objectName string) error
}

// StorageConnection is an open, named connection to one storage backend.
type StorageConnection interface {
	StorageExecutor
	Name() string
	Type() string
	Close() error
}

// StorageProvider opens connections of one backend type.
type StorageProvider interface {
	Type() string
	Connect(ctx context.Context, name string, properties map[string]interface{}) (StorageConnection, error)
}

// StorageConnectionResolver hands out connections by configured name.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
	CloseAll() error
}

// ProviderGroup is the fx value group that collects StorageProviders.
const ProviderGroup = "storage_providers"
