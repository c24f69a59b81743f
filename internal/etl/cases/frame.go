package cases

import (
	"fmt"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Frame renders records as the covid.csv artifact.
func Frame(records []model.CaseRecord) *tabular.Frame {
	f := &tabular.Frame{Header: Columns}
	for _, r := range records {
		f.Append(
			r.Region,
			r.Country,
			r.Latitude.String(),
			r.Longitude.String(),
			model.FormatDay(r.Date),
			model.FormatFloat(r.Confirmed),
			model.FormatFloat(r.Deaths),
			model.FormatFloat(r.Recovered),
			r.CountryCode,
			model.FormatFloat(r.Active),
		)
	}
	return f
}

// FromTable reads a previously written covid.csv back into records.
func FromTable(t *tabular.Table) ([]model.CaseRecord, error) {
	idx, err := t.Require(Columns...)
	if err != nil {
		return nil, err
	}
	num := func(row []string, col int, line int) (model.NullFloat, error) {
		v, err := model.ParseNullFloat(row[idx[col]])
		if err != nil {
			return v, fmt.Errorf("%w: line %d, %s: %v", model.ErrSchema, line, Columns[col], err)
		}
		return v, nil
	}

	out := make([]model.CaseRecord, 0, t.Len())
	for i, row := range t.Rows {
		line := i + 2
		d, err := model.ParseDay(row[idx[4]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrSchema, line, err)
		}
		var vals [4]model.NullFloat
		for k, col := range []int{5, 6, 7, 9} {
			if vals[k], err = num(row, col, line); err != nil {
				return nil, err
			}
		}
		lat, err := num(row, 2, line)
		if err != nil {
			return nil, err
		}
		long, err := num(row, 3, line)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CaseRecord{
			Region:      row[idx[0]],
			Country:     row[idx[1]],
			Latitude:    lat,
			Longitude:   long,
			Date:        d,
			Confirmed:   vals[0].OrZero(),
			Deaths:      vals[1].OrZero(),
			Recovered:   vals[2].OrZero(),
			Active:      vals[3].OrZero(),
			CountryCode: row[idx[8]],
		})
	}
	return out, nil
}
