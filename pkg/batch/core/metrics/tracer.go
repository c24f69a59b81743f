package metrics

import (
	"context"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
)

// Tracer opens spans around runs and stages. The returned func ends the span.
type Tracer interface {
	StartRunSpan(ctx context.Context, execution *model.RunExecution) (context.Context, func())
	StartStageSpan(ctx context.Context, execution *model.StageExecution) (context.Context, func())
	// StartSpan opens a child span for an arbitrary operation, such as a download.
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())
	// RecordError marks the span in ctx as failed.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds an event to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
