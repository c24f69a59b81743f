// Package reader downloads the remote sources and loads the local snapshots.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

const moduleReader = "reader"

// Source is one remote CSV document.
type Source struct {
	Name string
	URL  string
}

// HTTPFetcher downloads whole documents with per-host rate limiting and
// bounded exponential backoff. Network errors, 429 and 5xx responses are
// retried; other statuses fail at once.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     config.RetryConfig
	limit     rate.Limit
	burst     int
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a fetcher from epiflow.fetch.
func NewHTTPFetcher(cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer) *HTTPFetcher {
	fc := cfg.Epiflow.Fetch
	limit := rate.Inf
	if fc.RequestsPerSecond > 0 {
		limit = rate.Limit(fc.RequestsPerSecond)
	}
	burst := fc.Burst
	if burst < 1 {
		burst = 1
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: fc.Timeout()},
		userAgent: fc.UserAgent,
		retry:     fc.Retry,
		limit:     limit,
		burst:     burst,
		recorder:  recorder,
		tracer:    tracer,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiter(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[host] = l
	}
	return l
}

func (f *HTTPFetcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if f.retry.InitialIntervalMillis > 0 {
		b.InitialInterval = time.Duration(f.retry.InitialIntervalMillis) * time.Millisecond
	}
	if f.retry.MaxIntervalMillis > 0 {
		b.MaxInterval = time.Duration(f.retry.MaxIntervalMillis) * time.Millisecond
	}
	if f.retry.Multiplier > 1 {
		b.Multiplier = f.retry.Multiplier
	}
	return b
}

// Fetch downloads src completely.
func (f *HTTPFetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	ctx, end := f.tracer.StartSpan(ctx, "fetch "+src.Name, map[string]interface{}{"source": src.Name, "url": src.URL})
	defer end()

	maxTries := f.retry.MaxAttempts
	if maxTries < 1 {
		maxTries = 1
	}
	attempts := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempts++
		if err := f.limiter(src.URL).Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return f.get(ctx, src)
	},
		backoff.WithBackOff(f.newBackOff()),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnf("Fetching '%s' failed (attempt %d/%d), retrying in %s: %v", src.Name, attempts, maxTries, next, err)
		}),
	)
	f.recorder.RecordFetch(ctx, src.Name, int64(len(body)), attempts, err)
	if err != nil {
		f.tracer.RecordError(ctx, moduleReader, err)
		return nil, exception.NewBatchErrorf(moduleReader, fmt.Errorf("%w: %w", model.ErrSourceFetch, err),
			"failed to fetch '%s' from %s after %d attempt(s)", src.Name, src.URL, attempts)
	}
	logger.Infof("Fetched '%s': %d bytes in %d attempt(s).", src.Name, len(body), attempts)
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if exception.IsTemporary(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, exception.NewBatchError(moduleReader, "retryable response", statusErr, true)
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return body, nil
}

// CloseIdleConnections releases pooled connections.
func (f *HTTPFetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}

// FetchTable downloads src and decodes it as CSV.
func (f *HTTPFetcher) FetchTable(ctx context.Context, src Source) (*tabular.Table, error) {
	body, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	t, err := tabular.Decode(bytesReader(body))
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleReader, err, "failed to parse '%s'", src.Name)
	}
	f.recorder.RecordRows(ctx, src.Name, t.Len())
	return t, nil
}

// FetchTables downloads every source in parallel. Results are in the order of
// sources regardless of completion order; the first failure cancels the rest.
func (f *HTTPFetcher) FetchTables(ctx context.Context, sources []Source) ([]*tabular.Table, error) {
	out := make([]*tabular.Table, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			t, err := f.FetchTable(gctx, src)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
