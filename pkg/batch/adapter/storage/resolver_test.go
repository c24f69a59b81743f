package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/epiflow/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
)

func TestResolver_CachesConnectionsByName(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Epiflow.Adapter.Storage = map[string]map[string]interface{}{
		"artifacts": {"type": "local", "base_dir": t.TempDir()},
		"remote":    {"type": "s3", "bucket_name": "x"},
	}
	r := storage.NewResolver(cfg, []storage.StorageProvider{local.NewLocalProvider()})
	ctx := context.Background()

	first, err := r.ResolveStorageConnection(ctx, "artifacts")
	require.NoError(t, err)
	second, err := r.ResolveStorageConnection(ctx, "artifacts")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = r.ResolveStorageConnection(ctx, "remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no provider for type "s3"`)

	_, err = r.ResolveStorageConnection(ctx, "missing")
	assert.Error(t, err)

	assert.NoError(t, r.CloseAll())
}
