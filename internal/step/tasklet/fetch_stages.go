package tasklet

import (
	"context"

	"github.com/tigerroll/epiflow/internal/etl/cases"
	"github.com/tigerroll/epiflow/internal/etl/vaccination"
	"github.com/tigerroll/epiflow/internal/step/reader"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// FetchCasesStage downloads the three wide case tables and reshapes them.
type FetchCasesStage struct {
	stage
	fetcher  TableFetcher
	resolver cases.CodeResolver
	recorder metrics.MetricRecorder
	sources  []reader.Source
}

// NewFetchCasesStage creates the fetchCases stage.
func NewFetchCasesStage(cfg *config.Config, fetcher TableFetcher, resolver cases.CodeResolver, recorder metrics.MetricRecorder) *FetchCasesStage {
	src := cfg.Epiflow.Sources
	return &FetchCasesStage{
		stage:    stage{name: "fetchCases", outputs: []string{TableCases}},
		fetcher:  fetcher,
		resolver: resolver,
		recorder: recorder,
		sources: []reader.Source{
			{Name: "confirmed", URL: src.ConfirmedURL},
			{Name: "deaths", URL: src.DeathsURL},
			{Name: "recovered", URL: src.RecoveredURL},
		},
	}
}

// Execute publishes []model.CaseRecord as TableCases.
func (s *FetchCasesStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	tables, err := s.fetcher.FetchTables(ctx, s.sources)
	if err != nil {
		return err
	}
	records, err := cases.Reshape(tables[0], tables[1], tables[2], s.resolver)
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to reshape case tables")
	}
	logger.Infof("Reshaped case tables into %d rows.", len(records))
	s.recorder.RecordRows(ctx, TableCases, len(records))
	return scope.Put(TableCases, records)
}

// FetchVaccinationsStage downloads the vaccination series and location
// metadata and normalizes them.
type FetchVaccinationsStage struct {
	stage
	fetcher  TableFetcher
	recorder metrics.MetricRecorder
	sources  []reader.Source
}

// NewFetchVaccinationsStage creates the fetchVaccinations stage.
func NewFetchVaccinationsStage(cfg *config.Config, fetcher TableFetcher, recorder metrics.MetricRecorder) *FetchVaccinationsStage {
	src := cfg.Epiflow.Sources
	return &FetchVaccinationsStage{
		stage:    stage{name: "fetchVaccinations", outputs: []string{TableVaccinations}},
		fetcher:  fetcher,
		recorder: recorder,
		sources: []reader.Source{
			{Name: "vaccinations", URL: src.VaccinationsURL},
			{Name: "locations", URL: src.LocationsURL},
		},
	}
}

// Execute publishes *model.VaccinationTable as TableVaccinations.
func (s *FetchVaccinationsStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	tables, err := s.fetcher.FetchTables(ctx, s.sources)
	if err != nil {
		return err
	}
	table, err := vaccination.Normalize(tables[0], tables[1])
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to normalize vaccination tables")
	}
	logger.Infof("Normalized %d vaccination rows for %d countries.", len(table.Records), len(table.Countries()))
	s.recorder.RecordRows(ctx, TableVaccinations, len(table.Records))
	return scope.Put(TableVaccinations, table)
}

// LoadSnapshotsStage reads the static summary and daily snapshots.
type LoadSnapshotsStage struct {
	stage
	source      TableSource
	recorder    metrics.MetricRecorder
	summaryPath string
	dailyPath   string
}

// NewLoadSnapshotsStage creates the loadSnapshots stage.
func NewLoadSnapshotsStage(cfg *config.Config, source TableSource, recorder metrics.MetricRecorder) *LoadSnapshotsStage {
	return &LoadSnapshotsStage{
		stage:       stage{name: "loadSnapshots", outputs: []string{TableSummarySnapshot, TableDailySnapshot}},
		source:      source,
		recorder:    recorder,
		summaryPath: cfg.Epiflow.Sources.SummaryPath,
		dailyPath:   cfg.Epiflow.Sources.DailyPath,
	}
}

// Execute publishes both snapshots as *tabular.Table.
func (s *LoadSnapshotsStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	summary, err := s.source.Read(ctx, s.summaryPath)
	if err != nil {
		return err
	}
	daily, err := s.source.Read(ctx, s.dailyPath)
	if err != nil {
		return err
	}
	s.recorder.RecordRows(ctx, TableSummarySnapshot, summary.Len())
	s.recorder.RecordRows(ctx, TableDailySnapshot, daily.Len())
	if err := scope.Put(TableSummarySnapshot, summary); err != nil {
		return err
	}
	return scope.Put(TableDailySnapshot, daily)
}

// LoadCasesStage reads a previously exported covid.csv, so forecasts can be
// refreshed without downloading the sources again.
type LoadCasesStage struct {
	stage
	source   TableSource
	recorder metrics.MetricRecorder
	path     string
}

// NewLoadCasesStage creates the loadCases stage reading path from source.
func NewLoadCasesStage(source TableSource, recorder metrics.MetricRecorder, path string) *LoadCasesStage {
	return &LoadCasesStage{
		stage:    stage{name: "loadCases", outputs: []string{TableCases}},
		source:   source,
		recorder: recorder,
		path:     path,
	}
}

// Execute publishes []model.CaseRecord as TableCases.
func (s *LoadCasesStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	t, err := s.source.Read(ctx, s.path)
	if err != nil {
		return err
	}
	records, err := cases.FromTable(t)
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to read case artifact '%s'", s.path)
	}
	s.recorder.RecordRows(ctx, TableCases, len(records))
	return scope.Put(TableCases, records)
}
