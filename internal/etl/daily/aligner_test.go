package daily

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Worldometer spells dates without zero padding.
const snapshot = `date,country,cumulative_total_cases,daily_new_cases,active_cases,cumulative_total_deaths,daily_new_deaths
2021-1-1,Aland,10,10,7,1,1
2021-1-1,Borduria,5,5,4,0,0
2021-1-2,Aland,20,10,14,1,0
2021-1-2,Borduria,5,0,3,1,1
2021-1-3,Aland,30,10,18,2,1
2021-1-3,Borduria,10,5,7,1,0
2021-1-3,Syldavia,1000,1000,1000,0,0
2021-1-4,Aland,35,5,20,2,0
`

func day(d int) time.Time { return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC) }

func vacc(country string, d int, daily, total float64, reportedDaily bool) model.VaccinationRecord {
	return model.VaccinationRecord{
		Country:  country,
		Date:     day(d),
		Metrics:  []model.NullFloat{model.Float(total), model.Float(daily)},
		Reported: []bool{true, reportedDaily},
	}
}

func vaccTable() *model.VaccinationTable {
	return &model.VaccinationTable{
		MetricColumns: []string{"total_vaccinations", "daily_vaccinations"},
		Records: []model.VaccinationRecord{
			vacc("Aland", 1, 0, 0, false),
			vacc("Aland", 2, 3, 3, true),
			vacc("Aland", 3, 4, 7, true),
			vacc("Borduria", 2, 1, 1, true),
			vacc("Borduria", 3, 1, 2, false),
			vacc("Syldavia", 3, 0, 0, false),
			vacc("Borduria", 5, 2, 4, true),
		},
	}
}

func TestAlign(t *testing.T) {
	tbl, err := tabular.Decode(strings.NewReader(snapshot))
	require.NoError(t, err)

	rows, err := Align(tbl, vaccTable())
	require.NoError(t, err)

	var dates []string
	for _, r := range rows {
		dates = append(dates, model.FormatDay(r.Date))
	}
	assert.Equal(t, []string{"2021-01-01", "2021-01-02", "2021-01-03", "2021-01-05"}, dates)

	first := rows[0]
	assert.False(t, first.CumulativeTotalCases.Valid, "no reported vaccination on day 1 excludes its case rows")
	assert.Equal(t, model.Float(0), first.DailyVaccinations)

	third := rows[2]
	assert.Equal(t, model.Float(40), third.CumulativeTotalCases, "Syldavia has no reported vaccinations")
	assert.Equal(t, model.Float(15), third.DailyNewCases)
	assert.Equal(t, model.Float(3), third.CumulativeTotalDeaths)
	assert.Equal(t, model.Float(25), third.ActiveCases)
	assert.Equal(t, model.Float(5), third.DailyVaccinations, "vaccination sum is not filtered")
	assert.Equal(t, model.Float(9), third.TotalVaccinations)

	last := rows[3]
	assert.False(t, last.DailyNewCases.Valid)
	assert.Equal(t, model.Float(2), last.DailyVaccinations)
}

func TestAlign_Errors(t *testing.T) {
	tbl, err := tabular.Decode(strings.NewReader("date,country\n2021-1-1,Aland\n"))
	require.NoError(t, err)
	_, err = Align(tbl, vaccTable())
	assert.ErrorIs(t, err, model.ErrSchema)

	good, err := tabular.Decode(strings.NewReader(snapshot))
	require.NoError(t, err)
	_, err = Align(good, &model.VaccinationTable{MetricColumns: []string{"total_vaccinations"}})
	assert.ErrorIs(t, err, model.ErrSchema)
}

func TestFrame(t *testing.T) {
	f := Frame([]model.DailyComparisonRecord{{Date: day(5), DailyVaccinations: model.Float(2)}})
	assert.Equal(t, Columns, f.Header)
	assert.Equal(t, []string{"2021-01-05", "", "", "", "", "2.0", ""}, f.Rows[0])
}
