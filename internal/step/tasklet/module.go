package tasklet

import (
	"go.uber.org/fx"

	"github.com/tigerroll/epiflow/internal/country"
	"github.com/tigerroll/epiflow/internal/forecast"
	"github.com/tigerroll/epiflow/internal/step/reader"
	"github.com/tigerroll/epiflow/internal/step/writer"
	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

// NewCountryResolver merges configured code overrides over the defaults.
func NewCountryResolver(cfg *config.Config) *country.Resolver {
	overrides := country.DefaultCodeOverrides()
	for name, code := range cfg.Epiflow.Reconciliation.CodeOverrides {
		overrides[name] = code
	}
	return country.NewResolver(overrides)
}

// NewReconciler extends the curated alias table and exclusion set from configuration.
func NewReconciler(cfg *config.Config) *country.Reconciler {
	rc := cfg.Epiflow.Reconciliation
	return country.NewReconciler(rc.Aliases, rc.Exclusions)
}

// NewForecastCache creates the memo table around an engine tuned by epiflow.forecast.
func NewForecastCache(cfg *config.Config) *forecast.Cache {
	fc := cfg.Epiflow.Forecast
	opts := forecast.DefaultOptions()
	opts.HorizonDays = fc.HorizonDays
	opts.IntervalWidth = fc.IntervalWidth
	opts.Changepoints = fc.Changepoints
	opts.ChangepointRange = fc.ChangepointRange
	opts.FourierOrder = fc.FourierOrder
	opts.Regularization = fc.Regularization
	return forecast.NewCache(forecast.NewEngine(opts))
}

func newFetchCasesStage(cfg *config.Config, fetcher *reader.HTTPFetcher, resolver *country.Resolver, recorder metrics.MetricRecorder) *FetchCasesStage {
	return NewFetchCasesStage(cfg, fetcher, resolver, recorder)
}

func newFetchVaccinationsStage(cfg *config.Config, fetcher *reader.HTTPFetcher, recorder metrics.MetricRecorder) *FetchVaccinationsStage {
	return NewFetchVaccinationsStage(cfg, fetcher, recorder)
}

func newLoadSnapshotsStage(cfg *config.Config, resolver storage.StorageConnectionResolver, recorder metrics.MetricRecorder) *LoadSnapshotsStage {
	return NewLoadSnapshotsStage(cfg, reader.NewSnapshotReader(resolver, cfg.Epiflow.Sources.SnapshotStorageRef), recorder)
}

func newLoadCasesStage(cfg *config.Config, resolver storage.StorageConnectionResolver, w *writer.ArtifactWriter, recorder metrics.MetricRecorder) *LoadCasesStage {
	src := reader.NewSnapshotReader(resolver, cfg.Epiflow.Outputs.StorageRef)
	return NewLoadCasesStage(src, recorder, w.ObjectName(ArtifactCases))
}

func newExportStage(w *writer.ArtifactWriter) *ExportStage {
	return NewExportStage(w)
}

func newForecastStage(cfg *config.Config, cache *forecast.Cache, w *writer.ArtifactWriter, recorder metrics.MetricRecorder) (*ForecastStage, error) {
	targets, err := ParseMetrics(cfg.Epiflow.Forecast.Metrics)
	if err != nil {
		return nil, err
	}
	return NewForecastStage(cache, w, recorder, targets), nil
}

// Module provides every stage of the epidemic and forecast pipelines.
var Module = fx.Options(
	fx.Provide(
		NewCountryResolver,
		NewReconciler,
		NewForecastCache,
		newFetchCasesStage,
		newFetchVaccinationsStage,
		newLoadSnapshotsStage,
		newLoadCasesStage,
		NewReconcileStage,
		NewSummaryStage,
		NewDailyStage,
		newExportStage,
		newForecastStage,
	),
)
