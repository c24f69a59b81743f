package vaccination

import (
	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Frame renders the table as the df_vaccine.csv artifact.
func Frame(t *model.VaccinationTable) *tabular.Frame {
	header := []string{ColCountry, ColISOCode, ColDate}
	header = append(header, t.MetricColumns...)
	header = append(header, t.MetadataColumns...)

	f := &tabular.Frame{Header: header}
	for _, r := range t.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.Country, r.ISOCode, model.FormatDay(r.Date))
		for _, m := range r.Metrics {
			row = append(row, m.String())
		}
		row = append(row, r.Metadata...)
		f.Append(row...)
	}
	return f
}
