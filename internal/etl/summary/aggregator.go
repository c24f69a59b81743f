// Package summary builds the one-row-per-country summary from the snapshot
// table and the reconciled vaccination table.
package summary

import (
	"fmt"
	"time"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Snapshot and derived column names.
const (
	ColCountry           = "country"
	ColPopulation        = "population"
	ColTotalTests        = "total_tests"
	ColTotalConfirmed    = "total_confirmed"
	ColVaccines          = "vaccines"
	ColTotalVaccinations = "total_vaccinations"
	ColVaccinatedPercent = "vaccinated_percent"
	ColTestedPositive    = "tested_positive"
)

type countryVaccination struct {
	vaccines     string
	vaccinesDate time.Time
	max          []model.NullFloat
}

// Aggregate produces one row per snapshot row, in snapshot order.
//
// Every numeric vaccination column contributes its maximum over the country's
// dates; vaccines is the earliest non-empty manufacturer list. Vaccination
// columns whose names collide with snapshot columns are left out.
func Aggregate(snapshot *tabular.Table, vacc *model.VaccinationTable) (*model.SummaryTable, error) {
	idx, err := snapshot.Require(ColCountry, ColPopulation, ColTotalTests, ColTotalConfirmed)
	if err != nil {
		return nil, fmt.Errorf("summary snapshot: %w", err)
	}
	extra := snapshot.Others(ColCountry, ColPopulation, ColTotalTests, ColTotalConfirmed)
	extraIdx := make([]int, len(extra))
	for i, c := range extra {
		extraIdx[i], _ = snapshot.Column(c)
	}

	var vaccCols []int
	out := &model.SummaryTable{ExtraColumns: extra}
	for i, c := range vacc.MetricColumns {
		if _, clash := snapshot.Column(c); clash {
			continue
		}
		out.VaccinationColumns = append(out.VaccinationColumns, c)
		vaccCols = append(vaccCols, i)
	}
	totalVacc := indexOf(out.VaccinationColumns, ColTotalVaccinations)

	byCountry := collect(vacc, vaccCols)

	for i, row := range snapshot.Rows {
		line := i + 2
		var nums [3]model.NullFloat
		for k := 0; k < 3; k++ {
			v, err := model.ParseNullFloat(row[idx[k+1]])
			if err != nil {
				return nil, fmt.Errorf("%w: summary snapshot line %d: %v", model.ErrSchema, line, err)
			}
			nums[k] = v
		}

		rec := model.SummaryRecord{
			Country:        row[idx[0]],
			Population:     nums[0],
			TotalTests:     nums[1],
			TotalConfirmed: nums[2],
			Extra:          make([]string, len(extraIdx)),
			VaccinationMax: make([]model.NullFloat, len(vaccCols)),
		}
		for k, c := range extraIdx {
			rec.Extra[k] = row[c]
		}
		if cv, ok := byCountry[rec.Country]; ok {
			rec.VaccineManufacturers = cv.vaccines
			copy(rec.VaccinationMax, cv.max)
		}

		totalVaccinations := model.Null()
		if totalVacc >= 0 {
			totalVaccinations = rec.VaccinationMax[totalVacc]
		}
		rec.VaccinatedPercent = model.Ratio(totalVaccinations, rec.Population)
		rec.TestedPositive = model.Ratio(rec.TotalConfirmed, rec.TotalTests)
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func collect(vacc *model.VaccinationTable, cols []int) map[string]*countryVaccination {
	vaccinesCol := vacc.MetadataIndex(ColVaccines)
	out := make(map[string]*countryVaccination)
	for _, r := range vacc.Records {
		cv, ok := out[r.Country]
		if !ok {
			cv = &countryVaccination{max: make([]model.NullFloat, len(cols))}
			out[r.Country] = cv
		}
		if vaccinesCol >= 0 && r.Metadata[vaccinesCol] != "" {
			if cv.vaccines == "" || r.Date.Before(cv.vaccinesDate) {
				cv.vaccines = r.Metadata[vaccinesCol]
				cv.vaccinesDate = r.Date
			}
		}
		for k, c := range cols {
			v := r.Metrics[c]
			if v.Valid && (!cv.max[k].Valid || v.V > cv.max[k].V) {
				cv.max[k] = v
			}
		}
	}
	return out
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// Frame renders the table as the summary_df.csv artifact.
func Frame(t *model.SummaryTable) *tabular.Frame {
	header := []string{ColCountry, ColPopulation, ColTotalTests, ColTotalConfirmed}
	header = append(header, t.ExtraColumns...)
	header = append(header, ColVaccines)
	header = append(header, t.VaccinationColumns...)
	header = append(header, ColVaccinatedPercent, ColTestedPositive)

	f := &tabular.Frame{Header: header}
	for _, r := range t.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.Country, r.Population.String(), r.TotalTests.String(), r.TotalConfirmed.String())
		row = append(row, r.Extra...)
		row = append(row, r.VaccineManufacturers)
		for _, v := range r.VaccinationMax {
			row = append(row, v.String())
		}
		row = append(row, r.VaccinatedPercent.String(), r.TestedPositive.String())
		f.Append(row...)
	}
	return f
}
