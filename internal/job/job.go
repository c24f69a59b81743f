// Package job assembles the pipelines epiflow can run.
package job

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/epiflow/internal/step/tasklet"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
)

// Mode selects which pipeline to build.
type Mode string

const (
	// ModeRun downloads every source, writes all artifacts and forecasts.
	ModeRun Mode = "run"
	// ModeForecast forecasts from an existing covid.csv artifact.
	ModeForecast Mode = "forecast"
)

// ForecastPipelineName names the forecast-only pipeline.
const ForecastPipelineName = "forecastPipeline"

// BuilderParams collects the stages and observers of every pipeline.
type BuilderParams struct {
	fx.In

	Config            *config.Config
	FetchCases        *tasklet.FetchCasesStage
	FetchVaccinations *tasklet.FetchVaccinationsStage
	LoadSnapshots     *tasklet.LoadSnapshotsStage
	LoadCases         *tasklet.LoadCasesStage
	Reconcile         *tasklet.ReconcileStage
	Summary           *tasklet.SummaryStage
	Daily             *tasklet.DailyStage
	Export            *tasklet.ExportStage
	Forecast          *tasklet.ForecastStage

	Recorder       metrics.MetricRecorder
	Tracer         metrics.Tracer
	RunListeners   []pipeline.RunListener   `group:"runListeners"`
	StageListeners []pipeline.StageListener `group:"stageListeners"`
}

// Builder builds validated pipelines from the provided stages.
type Builder struct {
	p BuilderParams
}

// NewBuilder creates a Builder.
func NewBuilder(p BuilderParams) *Builder {
	return &Builder{p: p}
}

// Build returns the pipeline for mode.
func (b *Builder) Build(mode Mode) (*pipeline.Pipeline, error) {
	switch mode {
	case ModeRun, "":
		return pipeline.New(b.p.Config.Epiflow.Pipeline.Name, b.epidemicStages(), b.options()...)
	case ModeForecast:
		return pipeline.New(ForecastPipelineName, []pipeline.Stage{b.p.LoadCases, b.p.Forecast}, b.options()...)
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", mode)
	}
}

func (b *Builder) epidemicStages() []pipeline.Stage {
	stages := []pipeline.Stage{
		b.p.FetchCases,
		b.p.FetchVaccinations,
		b.p.LoadSnapshots,
		b.p.Reconcile,
		b.p.Summary,
		b.p.Daily,
		b.p.Export,
	}
	if b.p.Config.Epiflow.Forecast.Enabled {
		stages = append(stages, b.p.Forecast)
	}
	return stages
}

func (b *Builder) options() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithMetricRecorder(b.p.Recorder),
		pipeline.WithTracer(b.p.Tracer),
	}
	for _, l := range b.p.RunListeners {
		opts = append(opts, pipeline.WithRunListener(l))
	}
	for _, l := range b.p.StageListeners {
		opts = append(opts, pipeline.WithStageListener(l))
	}
	return opts
}

// Module provides the Builder.
var Module = fx.Options(
	fx.Provide(NewBuilder),
)
