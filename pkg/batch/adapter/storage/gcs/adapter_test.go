package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/epiflow/pkg/batch/adapter/storage/config"
)

func TestGCSProvider_ConnectRejectsBadConfig(t *testing.T) {
	p := NewGCSProvider()
	ctx := context.Background()

	_, err := p.Connect(ctx, "artifacts", map[string]interface{}{"type": "local", "base_dir": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")

	_, err = p.Connect(ctx, "artifacts", map[string]interface{}{"type": "gcs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket_name")
}

func TestClientOptionsFor(t *testing.T) {
	assert.Empty(t, clientOptionsFor(storageConfig.StorageConfig{Type: "gcs", BucketName: "b"}))
	assert.Len(t, clientOptionsFor(storageConfig.StorageConfig{Type: "gcs", BucketName: "b", CredentialsFile: "/k.json"}), 1)
}

func TestObjectPath(t *testing.T) {
	a := &gcsAdapter{cfg: storageConfig.StorageConfig{Prefix: "runs/latest"}}
	assert.Equal(t, "runs/latest/covid.csv", a.objectPath("covid.csv"))
	b := &gcsAdapter{}
	assert.Equal(t, "covid.csv", b.objectPath("covid.csv"))
}
