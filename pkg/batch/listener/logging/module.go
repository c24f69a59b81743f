package logging

import (
	"go.uber.org/fx"

	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
)

// RunListenerGroup and StageListenerGroup are the fx value groups pipelines collect listeners from.
const (
	RunListenerGroup   = "runListeners"
	StageListenerGroup = "stageListeners"
)

// Module contributes the logging listeners to the listener groups.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewRunListener,
		fx.As(new(pipeline.RunListener)),
		fx.ResultTags(`group:"`+RunListenerGroup+`"`),
	)),
	fx.Provide(fx.Annotate(
		NewStageListener,
		fx.As(new(pipeline.StageListener)),
		fx.ResultTags(`group:"`+StageListenerGroup+`"`),
	)),
)
