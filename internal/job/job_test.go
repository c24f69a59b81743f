package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/step/tasklet"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

func params(cfg *config.Config) BuilderParams {
	rec := metrics.NewNoOpMetricRecorder()
	return BuilderParams{
		Config:            cfg,
		FetchCases:        tasklet.NewFetchCasesStage(cfg, nil, nil, rec),
		FetchVaccinations: tasklet.NewFetchVaccinationsStage(cfg, nil, rec),
		LoadSnapshots:     tasklet.NewLoadSnapshotsStage(cfg, nil, rec),
		LoadCases:         tasklet.NewLoadCasesStage(nil, rec, tasklet.ArtifactCases),
		Reconcile:         tasklet.NewReconcileStage(tasklet.NewReconciler(cfg), rec),
		Summary:           tasklet.NewSummaryStage(rec),
		Daily:             tasklet.NewDailyStage(rec),
		Export:            tasklet.NewExportStage(nil),
		Forecast:          tasklet.NewForecastStage(tasklet.NewForecastCache(cfg), nil, rec, []model.Metric{model.MetricConfirmed}),
		Recorder:          rec,
		Tracer:            metrics.NewNoOpTracer(),
	}
}

func TestBuild_EpidemicPipelineOrder(t *testing.T) {
	cfg := config.NewConfig()
	p, err := NewBuilder(params(cfg)).Build(ModeRun)
	require.NoError(t, err)

	assert.Equal(t, "epidemicPipeline", p.Name())
	assert.Equal(t, []string{
		"fetchCases", "fetchVaccinations", "loadSnapshots", "reconcile", "summary", "daily", "export", "forecast",
	}, p.Order())
}

func TestBuild_ForecastDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Epiflow.Forecast.Enabled = false
	p, err := NewBuilder(params(cfg)).Build(ModeRun)
	require.NoError(t, err)
	assert.NotContains(t, p.Order(), "forecast")
}

func TestBuild_ForecastOnly(t *testing.T) {
	p, err := NewBuilder(params(config.NewConfig())).Build(ModeForecast)
	require.NoError(t, err)
	assert.Equal(t, ForecastPipelineName, p.Name())
	assert.Equal(t, []string{"loadCases", "forecast"}, p.Order())
}

func TestBuild_UnknownMode(t *testing.T) {
	_, err := NewBuilder(params(config.NewConfig())).Build("replay")
	assert.ErrorContains(t, err, "replay")
}
