package tasklet

import (
	"context"
	"strings"

	"github.com/tigerroll/epiflow/internal/country"
	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/etl/daily"
	"github.com/tigerroll/epiflow/internal/etl/summary"
	"github.com/tigerroll/epiflow/internal/tabular"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// ReconcileStage maps vaccination-source country names onto the case-source
// vocabulary. Names that match nothing are reported, never fatal.
type ReconcileStage struct {
	stage
	reconciler *country.Reconciler
	recorder   metrics.MetricRecorder
}

// NewReconcileStage creates the reconcile stage.
func NewReconcileStage(reconciler *country.Reconciler, recorder metrics.MetricRecorder) *ReconcileStage {
	return &ReconcileStage{
		stage: stage{
			name:    "reconcile",
			inputs:  []string{TableVaccinations, TableSummarySnapshot, TableDailySnapshot},
			outputs: []string{TableReconciledVaccinations, TableReconciliationReport},
		},
		reconciler: reconciler,
		recorder:   recorder,
	}
}

// Execute publishes the reconciled *model.VaccinationTable and its model.ReconciliationReport.
func (s *ReconcileStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	vacc, err := pipeline.Input[*model.VaccinationTable](scope, TableVaccinations)
	if err != nil {
		return err
	}
	canonical, err := s.canonicalNames(scope)
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to collect canonical country names")
	}

	reconciled, report := s.reconciler.Apply(vacc, canonical)
	logger.Infof("Reconciled vaccination countries: %d aliased, %d excluded, %d unmatched.",
		len(report.Aliased), len(report.Excluded), len(report.Unmatched))
	if len(report.Unmatched) > 0 {
		logger.Warnf("Vaccination countries without a case-source match: %s", strings.Join(report.Unmatched, ", "))
	}
	s.recorder.RecordUnmatchedCountries(ctx, len(report.Unmatched))

	if err := scope.Put(TableReconciledVaccinations, reconciled); err != nil {
		return err
	}
	return scope.Put(TableReconciliationReport, report)
}

func (s *ReconcileStage) canonicalNames(scope *pipeline.Scope) (map[string]struct{}, error) {
	var lists [][]string
	for _, name := range []string{TableSummarySnapshot, TableDailySnapshot} {
		t, err := pipeline.Input[*tabular.Table](scope, name)
		if err != nil {
			return nil, err
		}
		values, err := t.ColumnValues(summary.ColCountry)
		if err != nil {
			return nil, err
		}
		lists = append(lists, values)
	}
	return country.CanonicalSet(lists...), nil
}

// SummaryStage builds the per-country summary.
type SummaryStage struct {
	stage
	recorder metrics.MetricRecorder
}

// NewSummaryStage creates the summary stage.
func NewSummaryStage(recorder metrics.MetricRecorder) *SummaryStage {
	return &SummaryStage{
		stage: stage{
			name:    "summary",
			inputs:  []string{TableSummarySnapshot, TableReconciledVaccinations},
			outputs: []string{TableSummary},
		},
		recorder: recorder,
	}
}

// Execute publishes *model.SummaryTable as TableSummary.
func (s *SummaryStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	snapshot, err := pipeline.Input[*tabular.Table](scope, TableSummarySnapshot)
	if err != nil {
		return err
	}
	vacc, err := pipeline.Input[*model.VaccinationTable](scope, TableReconciledVaccinations)
	if err != nil {
		return err
	}
	out, err := summary.Aggregate(snapshot, vacc)
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to aggregate summary")
	}
	s.recorder.RecordRows(ctx, TableSummary, len(out.Records))
	return scope.Put(TableSummary, out)
}

// DailyStage aligns daily cases with vaccination rollout.
type DailyStage struct {
	stage
	recorder metrics.MetricRecorder
}

// NewDailyStage creates the daily stage.
func NewDailyStage(recorder metrics.MetricRecorder) *DailyStage {
	return &DailyStage{
		stage: stage{
			name:    "daily",
			inputs:  []string{TableDailySnapshot, TableReconciledVaccinations},
			outputs: []string{TableDaily},
		},
		recorder: recorder,
	}
}

// Execute publishes []model.DailyComparisonRecord as TableDaily.
func (s *DailyStage) Execute(ctx context.Context, scope *pipeline.Scope) error {
	snapshot, err := pipeline.Input[*tabular.Table](scope, TableDailySnapshot)
	if err != nil {
		return err
	}
	vacc, err := pipeline.Input[*model.VaccinationTable](scope, TableReconciledVaccinations)
	if err != nil {
		return err
	}
	out, err := daily.Align(snapshot, vacc)
	if err != nil {
		return exception.NewBatchErrorf(s.name, err, "failed to align daily data")
	}
	s.recorder.RecordRows(ctx, TableDaily, len(out))
	return scope.Put(TableDaily, out)
}
