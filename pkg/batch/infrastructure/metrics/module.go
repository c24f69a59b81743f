package metrics

import (
	"context"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// NewMetricRecorder selects the backend named by infrastructure.metrics.backend.
// Providers it creates are shut down with the application.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config) (metrics.MetricRecorder, error) {
	mc := cfg.Epiflow.Infrastructure.Metrics
	switch strings.ToLower(mc.Backend) {
	case "none":
		return metrics.NewNoOpMetricRecorder(), nil
	case "otlp":
		provider, err := NewMeterProvider(context.Background(), mc, cfg.Epiflow.Infrastructure.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		}))
		return NewOTelRecorder(provider, mc.Namespace)
	default:
		return NewPrometheusRecorder(mc.Namespace, mc.PushgatewayURL, cfg.Epiflow.Pipeline.Name), nil
	}
}

// NewTracer builds the OpenTelemetry tracer and registers provider shutdown.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tp, err := NewTracerProvider(context.Background(), cfg.Epiflow.Infrastructure.Tracing)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		return shutdownTracerProvider(ctx, tp)
	}))
	return NewOpenTelemetryTracer(tp), nil
}

func shutdownTracerProvider(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warnf("tracer provider shutdown: %v", err)
		return err
	}
	return nil
}

// Module provides the configured MetricRecorder and Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
