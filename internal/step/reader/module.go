package reader

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

func newHTTPFetcher(lc fx.Lifecycle, cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer) *HTTPFetcher {
	f := NewHTTPFetcher(cfg, recorder, tracer)
	lc.Append(fx.StopHook(f.CloseIdleConnections))
	return f
}

// Module provides the HTTP fetcher and releases its connections on stop.
var Module = fx.Options(
	fx.Provide(newHTTPFetcher),
)
