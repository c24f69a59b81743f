package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/epiflow/pkg/batch/adapter/storage/config"
)

type failingReader struct{ after string }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after == "" {
		return 0, errors.New("source interrupted")
	}
	n := copy(p, r.after)
	r.after = r.after[n:]
	return n, nil
}

func newTestAdapter(t *testing.T, prefix string) (*localAdapter, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{Type: ProviderType, BaseDir: dir, Prefix: prefix}, "artifacts")
	require.NoError(t, err)
	return conn.(*localAdapter), dir
}

func TestUpload_RoundTrip(t *testing.T) {
	a, dir := newTestAdapter(t, "")
	ctx := context.Background()

	require.NoError(t, a.Upload(ctx, "out/covid.csv", strings.NewReader("a,b\n1,2\n"), "text/csv"))

	rc, err := a.Download(ctx, "out/covid.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.FileExists(t, filepath.Join(dir, "out", "covid.csv"))
}

func TestUpload_FailedWriteLeavesPreviousFileIntact(t *testing.T) {
	a, dir := newTestAdapter(t, "")
	ctx := context.Background()
	require.NoError(t, a.Upload(ctx, "covid.csv", strings.NewReader("old"), "text/csv"))

	err := a.Upload(ctx, "covid.csv", &failingReader{after: "partial"}, "text/csv")
	require.Error(t, err)

	content, readErr := os.ReadFile(filepath.Join(dir, "covid.csv"))
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(content))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestListObjects_WithPrefix(t *testing.T) {
	a, _ := newTestAdapter(t, "run1")
	ctx := context.Background()
	for _, name := range []string{"covid.csv", "parquet/covid.parquet", "parquet/df_daily.parquet"} {
		require.NoError(t, a.Upload(ctx, name, strings.NewReader("x"), ""))
	}

	var all, parquet []string
	require.NoError(t, a.ListObjects(ctx, "", func(n string) error { all = append(all, n); return nil }))
	require.NoError(t, a.ListObjects(ctx, "parquet/", func(n string) error { parquet = append(parquet, n); return nil }))
	sort.Strings(all)

	assert.Equal(t, []string{"covid.csv", "parquet/covid.parquet", "parquet/df_daily.parquet"}, all)
	assert.Len(t, parquet, 2)
}

func TestResolvePath_RejectsEscape(t *testing.T) {
	a, _ := newTestAdapter(t, "")
	err := a.Upload(context.Background(), "../escape.csv", strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of base_dir")
}

func TestDeleteObject_MissingIsNotAnError(t *testing.T) {
	a, _ := newTestAdapter(t, "")
	assert.NoError(t, a.DeleteObject(context.Background(), "never-written.csv"))
}

func TestLocalProvider_ConnectValidatesType(t *testing.T) {
	p := NewLocalProvider()
	_, err := p.Connect(context.Background(), "artifacts", map[string]interface{}{"type": "gcs", "bucket_name": "b"})
	require.Error(t, err)

	conn, err := p.Connect(context.Background(), "artifacts", map[string]interface{}{"type": "local", "base_dir": t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "artifacts", conn.Name())
	assert.Equal(t, ProviderType, conn.Type())
}
