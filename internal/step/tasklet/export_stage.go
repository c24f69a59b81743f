package tasklet

import (
	"context"

	"github.com/tigerroll/epiflow/internal/country"
	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/etl/cases"
	"github.com/tigerroll/epiflow/internal/etl/daily"
	"github.com/tigerroll/epiflow/internal/etl/summary"
	"github.com/tigerroll/epiflow/internal/etl/vaccination"
	"github.com/tigerroll/epiflow/internal/tabular"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
)

// ExportStage writes the interchange artifacts once every table is complete.
type ExportStage struct {
	stage
	sink ArtifactSink
}

// NewExportStage creates the export stage.
func NewExportStage(sink ArtifactSink) *ExportStage {
	return &ExportStage{
		stage: stage{
			name: "export",
			inputs: []string{
				TableCases, TableReconciledVaccinations, TableSummary, TableDaily, TableReconciliationReport,
			},
			outputs: []string{TableArtifacts},
		},
		sink: sink,
	}
}

// Execute publishes the written artifact names as TableArtifacts.
func (s *ExportStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	caseRecords, err := pipeline.Input[[]model.CaseRecord](scope, TableCases)
	if err != nil {
		return err
	}
	vacc, err := pipeline.Input[*model.VaccinationTable](scope, TableReconciledVaccinations)
	if err != nil {
		return err
	}
	sum, err := pipeline.Input[*model.SummaryTable](scope, TableSummary)
	if err != nil {
		return err
	}
	dailyRecords, err := pipeline.Input[[]model.DailyComparisonRecord](scope, TableDaily)
	if err != nil {
		return err
	}
	report, err := pipeline.Input[model.ReconciliationReport](scope, TableReconciliationReport)
	if err != nil {
		return err
	}

	artifacts := []struct {
		name  string
		frame *tabular.Frame
	}{
		{ArtifactCases, cases.Frame(caseRecords)},
		{ArtifactVaccinations, vaccination.Frame(vacc)},
		{ArtifactSummary, summary.Frame(sum)},
		{ArtifactDaily, daily.Frame(dailyRecords)},
		{ArtifactReconciliation, country.ReportFrame(report)},
	}
	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := s.sink.Write(ctx, a.name, a.frame); err != nil {
			return err
		}
		written = append(written, a.name)
	}
	return scope.Put(TableArtifacts, written)
}
