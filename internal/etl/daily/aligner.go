// Package daily aligns the daily case snapshot with vaccination rollout into a
// single global row per date.
package daily

import (
	"fmt"
	"sort"
	"time"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Column names of the daily snapshot and the comparison artifact.
const (
	ColDate                  = "date"
	ColCountry               = "country"
	ColDailyNewCases         = "daily_new_cases"
	ColCumulativeTotalCases  = "cumulative_total_cases"
	ColCumulativeTotalDeaths = "cumulative_total_deaths"
	ColActiveCases           = "active_cases"
	ColDailyVaccinations     = "daily_vaccinations"
	ColTotalVaccinations     = "total_vaccinations"
)

// Columns is the header of the comparison artifact.
var Columns = []string{
	ColDate, ColDailyNewCases, ColCumulativeTotalCases, ColCumulativeTotalDeaths,
	ColActiveCases, ColDailyVaccinations, ColTotalVaccinations,
}

var caseColumns = []string{ColDailyNewCases, ColCumulativeTotalCases, ColCumulativeTotalDeaths, ColActiveCases}

// Coverage is the set of countries and dates with at least one reported daily
// vaccination value.
type Coverage struct {
	Countries map[string]struct{}
	Dates     map[time.Time]struct{}
}

// CoverageOf computes the coverage of a vaccination table. Only values present
// in the source count; forward-filled and zero-filled cells do not.
func CoverageOf(vacc *model.VaccinationTable) (Coverage, error) {
	col := vacc.MetricIndex(ColDailyVaccinations)
	if col < 0 {
		return Coverage{}, fmt.Errorf("%w: vaccination table has no %s column", model.ErrSchema, ColDailyVaccinations)
	}
	cov := Coverage{Countries: map[string]struct{}{}, Dates: map[time.Time]struct{}{}}
	for _, r := range vacc.Records {
		if reported(r, col) {
			cov.Countries[r.Country] = struct{}{}
			cov.Dates[r.Date] = struct{}{}
		}
	}
	return cov, nil
}

func reported(r model.VaccinationRecord, col int) bool {
	if col < len(r.Reported) {
		return r.Reported[col]
	}
	return r.Metrics[col].Valid
}

type sums struct {
	values [4]float64
}

// Align filters the daily case snapshot to the vaccination coverage, sums the
// case columns by date, outer-joins the daily vaccination sum by date and then
// attaches the global total_vaccinations sum. Rows are sorted by date.
func Align(snapshot *tabular.Table, vacc *model.VaccinationTable) ([]model.DailyComparisonRecord, error) {
	idx, err := snapshot.Require(append([]string{ColDate, ColCountry}, caseColumns...)...)
	if err != nil {
		return nil, fmt.Errorf("daily snapshot: %w", err)
	}
	cov, err := CoverageOf(vacc)
	if err != nil {
		return nil, err
	}
	totalCol := vacc.MetricIndex(ColTotalVaccinations)
	dailyCol := vacc.MetricIndex(ColDailyVaccinations)

	caseSums := make(map[time.Time]*sums)
	for i, row := range snapshot.Rows {
		line := i + 2
		d, err := model.ParseDay(row[idx[0]])
		if err != nil {
			return nil, fmt.Errorf("%w: daily snapshot line %d: %v", model.ErrSchema, line, err)
		}
		if _, ok := cov.Countries[row[idx[1]]]; !ok {
			continue
		}
		if _, ok := cov.Dates[d]; !ok {
			continue
		}
		s, ok := caseSums[d]
		if !ok {
			s = &sums{}
			caseSums[d] = s
		}
		for k := range caseColumns {
			v, err := model.ParseNullFloat(row[idx[k+2]])
			if err != nil {
				return nil, fmt.Errorf("%w: daily snapshot line %d, %s: %v", model.ErrSchema, line, caseColumns[k], err)
			}
			s.values[k] += v.OrZero()
		}
	}

	dailyVacc := make(map[time.Time]float64)
	totalVacc := make(map[time.Time]float64)
	for _, r := range vacc.Records {
		dailyVacc[r.Date] += r.Metrics[dailyCol].OrZero()
		if totalCol >= 0 {
			totalVacc[r.Date] += r.Metrics[totalCol].OrZero()
		}
	}

	dates := make(map[time.Time]struct{}, len(caseSums)+len(dailyVacc))
	for d := range caseSums {
		dates[d] = struct{}{}
	}
	for d := range dailyVacc {
		dates[d] = struct{}{}
	}
	ordered := make([]time.Time, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].Before(ordered[b]) })

	out := make([]model.DailyComparisonRecord, 0, len(ordered))
	for _, d := range ordered {
		rec := model.DailyComparisonRecord{Date: d}
		if s, ok := caseSums[d]; ok {
			rec.DailyNewCases = model.Float(s.values[0])
			rec.CumulativeTotalCases = model.Float(s.values[1])
			rec.CumulativeTotalDeaths = model.Float(s.values[2])
			rec.ActiveCases = model.Float(s.values[3])
		}
		if v, ok := dailyVacc[d]; ok {
			rec.DailyVaccinations = model.Float(v)
		}
		if v, ok := totalVacc[d]; ok {
			rec.TotalVaccinations = model.Float(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Frame renders records as the df_daily.csv artifact.
func Frame(records []model.DailyComparisonRecord) *tabular.Frame {
	f := &tabular.Frame{Header: Columns}
	for _, r := range records {
		f.Append(
			model.FormatDay(r.Date),
			r.DailyNewCases.String(),
			r.CumulativeTotalCases.String(),
			r.CumulativeTotalDeaths.String(),
			r.ActiveCases.String(),
			r.DailyVaccinations.String(),
			r.TotalVaccinations.String(),
		)
	}
	return f
}
