// Package tasklet implements the pipeline stages of the epidemic pipeline.
// Each stage wraps one domain component, reads the tables it declares and
// publishes the tables it produces.
package tasklet

import (
	"context"
	"strings"

	"github.com/tigerroll/epiflow/internal/step/reader"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Table names exchanged between stages.
const (
	TableCases                  = "cases"
	TableVaccinations           = "vaccinations"
	TableSummarySnapshot        = "summarySnapshot"
	TableDailySnapshot          = "dailySnapshot"
	TableReconciledVaccinations = "reconciledVaccinations"
	TableReconciliationReport   = "reconciliationReport"
	TableSummary                = "summary"
	TableDaily                  = "daily"
	TableArtifacts              = "artifacts"
	TableForecasts              = "forecasts"
)

// Artifact names.
const (
	ArtifactCases           = "covid.csv"
	ArtifactVaccinations    = "df_vaccine.csv"
	ArtifactSummary         = "summary_df.csv"
	ArtifactDaily           = "df_daily.csv"
	ArtifactReconciliation  = "reconciliation_report.csv"
	ArtifactForecastMetrics = "forecast_metrics.csv"
)

// ForecastArtifact names the forecast artifact of metric, e.g. forecast_confirmed.csv.
func ForecastArtifact(metric string) string {
	return "forecast_" + strings.ToLower(metric) + ".csv"
}

// TableFetcher downloads several remote CSV documents.
type TableFetcher interface {
	FetchTables(ctx context.Context, sources []reader.Source) ([]*tabular.Table, error)
}

// TableSource reads one CSV document by path.
type TableSource interface {
	Read(ctx context.Context, path string) (*tabular.Table, error)
}

// ArtifactSink stores output frames.
type ArtifactSink interface {
	Write(ctx context.Context, name string, f *tabular.Frame) error
}

// stage carries the declared graph edges shared by every stage.
type stage struct {
	name    string
	inputs  []string
	outputs []string
}

func (s stage) Name() string      { return s.name }
func (s stage) Inputs() []string  { return s.inputs }
func (s stage) Outputs() []string { return s.outputs }
