// Package vaccination joins the vaccination series with per-country metadata
// and forward-fills gaps within each country.
package vaccination

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Source column names.
const (
	ColLocation = "location"
	ColISOCode  = "iso_code"
	ColDate     = "date"
	ColCountry  = "country"
	ColVaccines = "vaccines"
)

type locationKey struct{ location, iso string }

// Normalize inner-joins series with locations on (location, iso_code), renames
// location to country, and forward-fills every numeric column per country.
//
// Numeric columns are the series columns other than the keys, followed by any
// metadata column whose non-empty cells all parse as numbers. Countries come
// out in first-appearance order with dates ascending.
func Normalize(series, locations *tabular.Table) (*model.VaccinationTable, error) {
	if series == nil || locations == nil {
		return nil, fmt.Errorf("%w: vaccination series and locations are both required", model.ErrSchema)
	}
	sIdx, err := series.Require(ColLocation, ColISOCode, ColDate)
	if err != nil {
		return nil, fmt.Errorf("vaccinations: %w", err)
	}
	lIdx, err := locations.Require(ColLocation, ColISOCode)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}

	seriesMetrics := series.Others(ColLocation, ColISOCode, ColDate)
	extra := locations.Others(ColLocation, ColISOCode)
	numericMeta, textMeta := splitNumeric(locations, extra)

	table := &model.VaccinationTable{
		MetricColumns:   append(append([]string{}, seriesMetrics...), numericMeta...),
		MetadataColumns: textMeta,
	}
	seriesCol := columnIndexes(series, seriesMetrics)
	numericCol := columnIndexes(locations, numericMeta)
	textCol := columnIndexes(locations, textMeta)

	meta := make(map[locationKey][]string, locations.Len())
	for _, row := range locations.Rows {
		k := locationKey{row[lIdx[0]], row[lIdx[1]]}
		if _, dup := meta[k]; !dup {
			meta[k] = row
		}
	}

	var records []model.VaccinationRecord
	for i, row := range series.Rows {
		loc, ok := meta[locationKey{row[sIdx[0]], row[sIdx[1]]}]
		if !ok {
			continue
		}
		d, err := model.ParseDay(row[sIdx[2]])
		if err != nil {
			return nil, fmt.Errorf("%w: vaccinations line %d: %v", model.ErrSchema, i+2, err)
		}

		rec := model.VaccinationRecord{
			Country:  row[sIdx[0]],
			ISOCode:  row[sIdx[1]],
			Date:     d,
			Metrics:  make([]model.NullFloat, 0, len(table.MetricColumns)),
			Reported: make([]bool, 0, len(table.MetricColumns)),
			Metadata: make([]string, len(textCol)),
		}
		for k, c := range seriesCol {
			v, err := model.ParseNullFloat(row[c])
			if err != nil {
				return nil, fmt.Errorf("%w: vaccinations line %d, %s: %v", model.ErrSchema, i+2, seriesMetrics[k], err)
			}
			rec.Metrics = append(rec.Metrics, v)
			rec.Reported = append(rec.Reported, v.Valid)
		}
		for _, c := range numericCol {
			v, _ := model.ParseNullFloat(loc[c])
			rec.Metrics = append(rec.Metrics, v)
			rec.Reported = append(rec.Reported, v.Valid)
		}
		for k, c := range textCol {
			rec.Metadata[k] = loc[c]
		}
		records = append(records, rec)
	}

	var out []model.VaccinationRecord
	for _, part := range Partition(records) {
		FillForward(part)
		out = append(out, part...)
	}
	table.Records = out
	return table, nil
}

// Partition groups records by country in first-appearance order and sorts each
// group by date. The sort is stable, so same-day rows keep their source order.
func Partition(records []model.VaccinationRecord) [][]model.VaccinationRecord {
	pos := make(map[string]int)
	var parts [][]model.VaccinationRecord
	for _, r := range records {
		i, ok := pos[r.Country]
		if !ok {
			i = len(parts)
			pos[r.Country] = i
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], r)
	}
	for _, p := range parts {
		sort.SliceStable(p, func(a, b int) bool { return p[a].Date.Before(p[b].Date) })
	}
	return parts
}

// FillForward fills the numeric gaps of one date-ordered country partition in
// place: each missing value takes the latest earlier value of the same column,
// and values before the first report become zero. Applying it twice changes
// nothing.
func FillForward(partition []model.VaccinationRecord) {
	if len(partition) == 0 {
		return
	}
	width := len(partition[0].Metrics)
	for col := 0; col < width; col++ {
		last := model.Null()
		for i := range partition {
			m := partition[i].Metrics
			switch {
			case m[col].Valid:
				last = m[col]
			case last.Valid:
				m[col] = last
			default:
				m[col] = model.Float(0)
			}
		}
	}
}

func splitNumeric(t *tabular.Table, cols []string) (numeric, text []string) {
	for _, c := range cols {
		if isNumericColumn(t, c) {
			numeric = append(numeric, c)
		} else {
			text = append(text, c)
		}
	}
	return numeric, text
}

func isNumericColumn(t *tabular.Table, col string) bool {
	values, err := t.ColumnValues(col)
	if err != nil {
		return false
	}
	seen := false
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, err := model.ParseNullFloat(v); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func columnIndexes(t *tabular.Table, cols []string) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i], _ = t.Column(c)
	}
	return out
}
