// Package metrics provides the concrete observability backends: a Prometheus
// recorder that can push to a Pushgateway when the run ends, an OpenTelemetry
// metric recorder that exports over OTLP, and an OpenTelemetry tracer.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// PrometheusRecorder implements metrics.MetricRecorder on a private registry.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	pushgatewayURL string
	jobName        string

	runDurationSeconds   *prometheus.HistogramVec
	runStatusCounter     *prometheus.CounterVec
	stageDurationSeconds *prometheus.HistogramVec
	stageStatusCounter   *prometheus.CounterVec
	fetchBytes           *prometheus.CounterVec
	fetchAttempts        *prometheus.HistogramVec
	fetchFailures        *prometheus.CounterVec
	tableRows            *prometheus.GaugeVec
	unmatchedCountries   prometheus.Counter
	forecastRMSE         *prometheus.GaugeVec
	forecastDuration     *prometheus.HistogramVec
	artifactBytes        *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder. When pushgatewayURL is set,
// Flush pushes the registry under jobName.
func NewPrometheusRecorder(namespace, pushgatewayURL, jobName string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry:       registry,
		pushgatewayURL: pushgatewayURL,
		jobName:        jobName,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"pipeline", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_status_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"pipeline", "status"}),
		stageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		stageStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_status_total",
			Help:      "Stage executions by final status.",
		}, []string{"stage", "status"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes downloaded per source.",
		}, []string{"source"}),
		fetchAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempts",
			Help:      "Attempts needed per source download.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"source"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Source downloads that failed after all attempts.",
		}, []string{"source"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Row count of each materialised table.",
		}, []string{"table"}),
		unmatchedCountries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_unmatched_total",
			Help:      "Vaccination-source country names that matched no case-source country.",
		}),
		forecastRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_rmse",
			Help:      "In-sample RMSE of the latest forecast per metric.",
		}, []string{"metric"}),
		forecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_fit_seconds",
			Help:      "Time spent fitting a forecast.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric"}),
		artifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes written per artifact and storage connection.",
		}, []string{"storage", "artifact"}),
	}

	registry.MustRegister(
		r.runDurationSeconds, r.runStatusCounter,
		r.stageDurationSeconds, r.stageStatusCounter,
		r.fetchBytes, r.fetchAttempts, r.fetchFailures,
		r.tableRows, r.unmatchedCountries,
		r.forecastRMSE, r.forecastDuration,
		r.artifactBytes,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for a scrape handler.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordRunStart(_ context.Context, e *model.RunExecution) {
	logger.Debugf("metrics: run %s started", e.ID)
}

func (r *PrometheusRecorder) RecordRunEnd(_ context.Context, e *model.RunExecution) {
	status := e.Status.String()
	r.runDurationSeconds.WithLabelValues(e.PipelineName, status).Observe(e.Duration().Seconds())
	r.runStatusCounter.WithLabelValues(e.PipelineName, status).Inc()
}

func (r *PrometheusRecorder) RecordStageStart(context.Context, *model.StageExecution) {}

func (r *PrometheusRecorder) RecordStageEnd(_ context.Context, e *model.StageExecution) {
	status := e.Status.String()
	r.stageDurationSeconds.WithLabelValues(e.StageName, status).Observe(e.Duration().Seconds())
	r.stageStatusCounter.WithLabelValues(e.StageName, status).Inc()
}

func (r *PrometheusRecorder) RecordFetch(_ context.Context, source string, bytes int64, attempts int, err error) {
	r.fetchAttempts.WithLabelValues(source).Observe(float64(attempts))
	if err != nil {
		r.fetchFailures.WithLabelValues(source).Inc()
		return
	}
	r.fetchBytes.WithLabelValues(source).Add(float64(bytes))
}

func (r *PrometheusRecorder) RecordRows(_ context.Context, table string, rows int) {
	r.tableRows.WithLabelValues(table).Set(float64(rows))
}

func (r *PrometheusRecorder) RecordUnmatchedCountries(_ context.Context, count int) {
	r.unmatchedCountries.Add(float64(count))
}

func (r *PrometheusRecorder) RecordForecast(_ context.Context, metric string, rmse float64, d time.Duration) {
	r.forecastRMSE.WithLabelValues(metric).Set(rmse)
	r.forecastDuration.WithLabelValues(metric).Observe(d.Seconds())
}

func (r *PrometheusRecorder) RecordArtifact(_ context.Context, storage, name string, bytes int64) {
	r.artifactBytes.WithLabelValues(storage, name).Add(float64(bytes))
}

// Flush pushes the registry to the Pushgateway. Without a gateway it is a no-op,
// since a batch process usually exits before it could be scraped.
func (r *PrometheusRecorder) Flush(ctx context.Context) error {
	if r.pushgatewayURL == "" {
		return nil
	}
	if err := push.New(r.pushgatewayURL, r.jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", r.pushgatewayURL, err)
	}
	logger.Debugf("metrics: pushed to %s", r.pushgatewayURL)
	return nil
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
