package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

// OTelRecorder implements metrics.MetricRecorder with OpenTelemetry instruments.
type OTelRecorder struct {
	provider *sdkmetric.MeterProvider

	runDuration      metric.Float64Histogram
	runStatus        metric.Int64Counter
	stageDuration    metric.Float64Histogram
	fetchBytes       metric.Int64Counter
	fetchAttempts    metric.Int64Histogram
	fetchFailures    metric.Int64Counter
	tableRows        metric.Int64Gauge
	unmatched        metric.Int64Counter
	forecastRMSE     metric.Float64Gauge
	forecastDuration metric.Float64Histogram
	artifactBytes    metric.Int64Counter
}

// NewMeterProvider builds a meter provider that exports to the configured OTLP endpoint.
func NewMeterProvider(ctx context.Context, cfg config.MetricsConfig, serviceName string) (*sdkmetric.MeterProvider, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch strings.ToLower(cfg.OTLP.Protocol) {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLP.Endpoint)}
		if cfg.OTLP.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLP.Endpoint)}
		if cfg.OTLP.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.OTLP.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	), nil
}

// NewOTelRecorder creates the instruments on provider. Instrument names are
// prefixed with namespace.
func NewOTelRecorder(provider *sdkmetric.MeterProvider, namespace string) (*OTelRecorder, error) {
	m := provider.Meter(instrumentationName)
	name := func(s string) string {
		if namespace == "" {
			return s
		}
		return namespace + "." + s
	}

	r := &OTelRecorder{provider: provider}
	var err error
	if r.runDuration, err = m.Float64Histogram(name("run.duration"), metric.WithUnit("s"), metric.WithDescription("Duration of pipeline runs.")); err != nil {
		return nil, err
	}
	if r.runStatus, err = m.Int64Counter(name("run.status"), metric.WithDescription("Pipeline runs by final status.")); err != nil {
		return nil, err
	}
	if r.stageDuration, err = m.Float64Histogram(name("stage.duration"), metric.WithUnit("s"), metric.WithDescription("Duration of pipeline stages.")); err != nil {
		return nil, err
	}
	if r.fetchBytes, err = m.Int64Counter(name("fetch.bytes"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if r.fetchAttempts, err = m.Int64Histogram(name("fetch.attempts")); err != nil {
		return nil, err
	}
	if r.fetchFailures, err = m.Int64Counter(name("fetch.failures")); err != nil {
		return nil, err
	}
	if r.tableRows, err = m.Int64Gauge(name("table.rows")); err != nil {
		return nil, err
	}
	if r.unmatched, err = m.Int64Counter(name("reconciliation.unmatched")); err != nil {
		return nil, err
	}
	if r.forecastRMSE, err = m.Float64Gauge(name("forecast.rmse")); err != nil {
		return nil, err
	}
	if r.forecastDuration, err = m.Float64Histogram(name("forecast.fit.duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.artifactBytes, err = m.Int64Counter(name("artifact.bytes"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelRecorder) RecordRunStart(context.Context, *model.RunExecution) {}

func (r *OTelRecorder) RecordRunEnd(ctx context.Context, e *model.RunExecution) {
	attrs := metric.WithAttributes(attribute.String("pipeline", e.PipelineName), attribute.String("status", e.Status.String()))
	r.runDuration.Record(ctx, e.Duration().Seconds(), attrs)
	r.runStatus.Add(ctx, 1, attrs)
}

func (r *OTelRecorder) RecordStageStart(context.Context, *model.StageExecution) {}

func (r *OTelRecorder) RecordStageEnd(ctx context.Context, e *model.StageExecution) {
	r.stageDuration.Record(ctx, e.Duration().Seconds(), metric.WithAttributes(
		attribute.String("stage", e.StageName), attribute.String("status", e.Status.String())))
}

func (r *OTelRecorder) RecordFetch(ctx context.Context, source string, bytes int64, attempts int, err error) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	r.fetchAttempts.Record(ctx, int64(attempts), attrs)
	if err != nil {
		r.fetchFailures.Add(ctx, 1, attrs)
		return
	}
	r.fetchBytes.Add(ctx, bytes, attrs)
}

func (r *OTelRecorder) RecordRows(ctx context.Context, table string, rows int) {
	r.tableRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("table", table)))
}

func (r *OTelRecorder) RecordUnmatchedCountries(ctx context.Context, count int) {
	r.unmatched.Add(ctx, int64(count))
}

func (r *OTelRecorder) RecordForecast(ctx context.Context, name string, rmse float64, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("metric", name))
	r.forecastRMSE.Record(ctx, rmse, attrs)
	r.forecastDuration.Record(ctx, d.Seconds(), attrs)
}

func (r *OTelRecorder) RecordArtifact(ctx context.Context, storage, name string, bytes int64) {
	r.artifactBytes.Add(ctx, bytes, metric.WithAttributes(attribute.String("storage", storage), attribute.String("artifact", name)))
}

// Flush forces the periodic reader to export now.
func (r *OTelRecorder) Flush(ctx context.Context) error {
	return r.provider.ForceFlush(ctx)
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
