// Package metrics defines the observability ports used by the pipeline engine
// and its stages. Concrete backends live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
)

// MetricRecorder records run, stage and domain-level measurements.
type MetricRecorder interface {
	// RecordRunStart records the start of a pipeline run.
	RecordRunStart(ctx context.Context, execution *model.RunExecution)
	// RecordRunEnd records the outcome and duration of a pipeline run.
	RecordRunEnd(ctx context.Context, execution *model.RunExecution)
	// RecordStageStart records the start of a stage.
	RecordStageStart(ctx context.Context, execution *model.StageExecution)
	// RecordStageEnd records the outcome and duration of a stage.
	RecordStageEnd(ctx context.Context, execution *model.StageExecution)

	// RecordFetch records one source download, including how many attempts it took.
	RecordFetch(ctx context.Context, source string, bytes int64, attempts int, err error)
	// RecordRows records the row count of a materialised table.
	RecordRows(ctx context.Context, table string, rows int)
	// RecordUnmatchedCountries records how many vaccination-source names matched no case-source country.
	RecordUnmatchedCountries(ctx context.Context, count int)
	// RecordForecast records a completed forecast fit.
	RecordForecast(ctx context.Context, metric string, rmse float64, duration time.Duration)
	// RecordArtifact records an artifact written to a storage connection.
	RecordArtifact(ctx context.Context, storage, name string, bytes int64)

	// Flush pushes buffered measurements to the backend, if it is push based.
	Flush(ctx context.Context) error
}
