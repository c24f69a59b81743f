package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tigerroll/epiflow/internal/domain/model"
	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/epiflow/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fetchRecord struct {
	source   string
	bytes    int64
	attempts int
	failed   bool
}

type recordingRecorder struct {
	*metrics.NoOpMetricRecorder
	mu      sync.Mutex
	fetches []fetchRecord
}

func (r *recordingRecorder) RecordFetch(_ context.Context, source string, bytes int64, attempts int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, fetchRecord{source, bytes, attempts, err != nil})
}

func newFetcher(t *testing.T) (*HTTPFetcher, *recordingRecorder) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Epiflow.Fetch.RequestsPerSecond = 0
	cfg.Epiflow.Fetch.Retry = config.RetryConfig{MaxAttempts: 3, InitialIntervalMillis: 1, MaxIntervalMillis: 5, Multiplier: 2}
	rec := &recordingRecorder{NoOpMetricRecorder: &metrics.NoOpMetricRecorder{}}
	f := NewHTTPFetcher(cfg, rec, metrics.NewNoOpTracer())
	t.Cleanup(f.CloseIdleConnections)
	return f, rec
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "epiflow/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	f, rec := newFetcher(t)
	body, err := f.Fetch(context.Background(), Source{Name: "confirmed", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []fetchRecord{{"confirmed", 8, 3, false}}, rec.fetches)
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	f, rec := newFetcher(t)
	_, err := f.Fetch(context.Background(), Source{Name: "deaths", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSourceFetch)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, rec.fetches[0].failed)
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.Fetch(context.Background(), Source{Name: "recovered", URL: srv.URL})
	assert.ErrorIs(t, err, model.ErrSourceFetch)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchTables_KeepsSourceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// later sources answer first
		switch r.URL.Path {
		case "/first":
			time.Sleep(30 * time.Millisecond)
		case "/second":
			time.Sleep(10 * time.Millisecond)
		}
		_, _ = w.Write([]byte("name\n" + r.URL.Path[1:] + "\n"))
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	tables, err := f.FetchTables(context.Background(), []Source{
		{Name: "first", URL: srv.URL + "/first"},
		{Name: "second", URL: srv.URL + "/second"},
		{Name: "third", URL: srv.URL + "/third"},
	})
	require.NoError(t, err)
	require.Len(t, tables, 3)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, tables[i].Rows[0][0])
	}
}

func TestFetchTables_FailsWhenAnySourceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("name\nok\n"))
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.FetchTables(context.Background(), []Source{
		{Name: "good", URL: srv.URL + "/good"},
		{Name: "bad", URL: srv.URL + "/bad"},
	})
	assert.ErrorIs(t, err, model.ErrSourceFetch)
}

func TestFetchTable_MalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a,b\n1,2,3\n"))
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.FetchTable(context.Background(), Source{Name: "locations", URL: srv.URL})
	assert.ErrorIs(t, err, model.ErrSchema)
}

func TestSnapshotReader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.csv"), []byte("country,population\nAland,1000\n"), 0o644))

	cfg := config.NewConfig()
	cfg.Epiflow.Adapter.Storage = map[string]map[string]interface{}{
		"snapshots": {"type": "local", "base_dir": dir},
	}
	resolver := storage.NewResolver(cfg, []storage.StorageProvider{local.NewLocalProvider()})
	r := NewSnapshotReader(resolver, "snapshots")

	tbl, err := r.Read(context.Background(), "summary.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = r.Read(context.Background(), "missing.csv")
	assert.ErrorIs(t, err, model.ErrSourceFetch)

	_, err = NewSnapshotReader(resolver, "nowhere").Read(context.Background(), "summary.csv")
	assert.ErrorIs(t, err, model.ErrSourceFetch)
}
