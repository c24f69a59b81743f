package tasklet

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/forecast"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// ForecastStage fits one forecast per configured metric and writes each as
// an artifact. A metric that cannot be fitted is logged and skipped; the stage
// fails when no metric could be fitted or when an artifact cannot be written.
type ForecastStage struct {
	stage
	cache    *forecast.Cache
	sink     ArtifactSink
	recorder metrics.MetricRecorder
	targets  []model.Metric
}

// NewForecastStage creates the forecast stage for targets.
func NewForecastStage(cache *forecast.Cache, sink ArtifactSink, recorder metrics.MetricRecorder, targets []model.Metric) *ForecastStage {
	return &ForecastStage{
		stage: stage{
			name:    "forecast",
			inputs:  []string{TableCases},
			outputs: []string{TableForecasts},
		},
		cache:    cache,
		sink:     sink,
		recorder: recorder,
		targets:  targets,
	}
}

// ParseMetrics resolves configured metric names. An empty list means every metric.
func ParseMetrics(names []string) ([]model.Metric, error) {
	if len(names) == 0 {
		return append([]model.Metric(nil), model.Metrics...), nil
	}
	out := make([]model.Metric, 0, len(names))
	for _, n := range names {
		m, err := model.ParseMetric(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Execute publishes []*model.ForecastResult as TableForecasts.
func (s *ForecastStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	records, err := pipeline.Input[[]model.CaseRecord](scope, TableCases)
	if err != nil {
		return err
	}
	version := forecast.Fingerprint(records)

	var (
		results  []*model.ForecastResult
		failures *multierror.Error
	)
	for _, m := range s.targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.fit(ctx, version, records, m)
		if err != nil {
			logger.Errorf("Forecast for %s failed, continuing with the next metric: %v", m, err)
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", m, err))
			continue
		}
		if err := s.sink.Write(ctx, ForecastArtifact(string(m)), forecast.Frame(res)); err != nil {
			return err
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		if err := s.sink.Write(ctx, ArtifactForecastMetrics, forecast.MetricsFrame(results)); err != nil {
			return err
		}
	}
	if len(results) == 0 && failures.ErrorOrNil() != nil {
		return exception.NewBatchError(s.name, "no metric could be forecast", failures.ErrorOrNil(), false)
	}
	if results == nil {
		results = []*model.ForecastResult{}
	}
	return scope.Put(TableForecasts, results)
}

func (s *ForecastStage) fit(ctx context.Context, version string, records []model.CaseRecord, m model.Metric) (*model.ForecastResult, error) {
	start := time.Now()
	res, err := s.cache.Get(ctx, version, records, m)
	if err != nil {
		return nil, err
	}
	s.recorder.RecordForecast(ctx, string(m), res.InSampleRMSE, time.Since(start))
	logger.Infof("Forecast for %s: %d history days, %d points, RMSE %.3f.", m, res.HistoryLength, len(res.Points), res.InSampleRMSE)
	return res, nil
}
