package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards everything. It backs the "none" backend and tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(context.Context, *model.RunExecution)     {}
func (r *NoOpMetricRecorder) RecordRunEnd(context.Context, *model.RunExecution)       {}
func (r *NoOpMetricRecorder) RecordStageStart(context.Context, *model.StageExecution) {}
func (r *NoOpMetricRecorder) RecordStageEnd(context.Context, *model.StageExecution)   {}
func (r *NoOpMetricRecorder) RecordFetch(context.Context, string, int64, int, error)  {}
func (r *NoOpMetricRecorder) RecordRows(context.Context, string, int)                 {}
func (r *NoOpMetricRecorder) RecordUnmatchedCountries(context.Context, int)           {}
func (r *NoOpMetricRecorder) RecordForecast(context.Context, string, float64, time.Duration) {
}
func (r *NoOpMetricRecorder) RecordArtifact(context.Context, string, string, int64) {}
func (r *NoOpMetricRecorder) Flush(context.Context) error                           { return nil }

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, _ *model.RunExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStageSpan(ctx context.Context, _ *model.StageExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartSpan(ctx context.Context, _ string, _ map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error)                  {}
func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
