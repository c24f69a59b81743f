package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// SnapshotReader loads static CSV snapshots from a named storage connection.
type SnapshotReader struct {
	resolver   storage.StorageConnectionResolver
	storageRef string
}

// NewSnapshotReader reads from the connection called storageRef.
func NewSnapshotReader(resolver storage.StorageConnectionResolver, storageRef string) *SnapshotReader {
	return &SnapshotReader{resolver: resolver, storageRef: storageRef}
}

// Read downloads and decodes the object at path.
func (r *SnapshotReader) Read(ctx context.Context, path string) (*tabular.Table, error) {
	conn, err := r.resolver.ResolveStorageConnection(ctx, r.storageRef)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleReader, fmt.Errorf("%w: %w", model.ErrSourceFetch, err),
			"failed to resolve snapshot storage '%s'", r.storageRef)
	}
	rc, err := conn.Download(ctx, path)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleReader, fmt.Errorf("%w: %w", model.ErrSourceFetch, err),
			"failed to open snapshot '%s'", path)
	}
	defer rc.Close()

	t, err := tabular.Decode(rc)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleReader, err, "failed to parse snapshot '%s'", path)
	}
	logger.Infof("Loaded snapshot '%s' from '%s': %d rows.", path, r.storageRef, t.Len())
	return t, nil
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
