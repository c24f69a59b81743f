package cases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

type stubResolver struct {
	codes map[string]string
	calls map[string]int
}

func (s *stubResolver) Code(name string) (string, bool) {
	s.calls[name]++
	c, ok := s.codes[name]
	return c, ok
}

func newStub() *stubResolver {
	return &stubResolver{codes: map[string]string{"Aland": "ALA"}, calls: map[string]int{}}
}

func table(t *testing.T, a, b []string) *tabular.Table {
	t.Helper()
	doc := "Province/State,Country/Region,Lat,Long,1/22/20,1/23/20,1/24/20\n" +
		",Aland," + "60.1,19.9," + strings.Join(a, ",") + "\n" +
		",Borduria," + "45.0,20.0," + strings.Join(b, ",") + "\n"
	tbl, err := tabular.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return tbl
}

func TestReshape_TwoCountryScenario(t *testing.T) {
	confirmed := table(t, []string{"10", "20", "30"}, []string{"5", "5", "10"})
	deaths := table(t, []string{"1", "1", "2"}, []string{"0", "1", "1"})
	recovered := table(t, []string{"2", "5", "10"}, []string{"1", "1", "2"})
	res := newStub()

	records, err := Reshape(confirmed, deaths, recovered, res)
	require.NoError(t, err)
	require.Len(t, records, 6)

	for _, r := range records {
		assert.Equal(t, r.Confirmed-r.Deaths-r.Recovered, r.Active)
		assert.Equal(t, model.Day(r.Date), r.Date)
	}
	a3 := records[2]
	assert.Equal(t, "Aland", a3.Country)
	assert.Equal(t, "2020-01-24", model.FormatDay(a3.Date))
	assert.Equal(t, 18.0, a3.Active)
	assert.Equal(t, "ALA", a3.CountryCode)
	assert.Empty(t, records[3].CountryCode, "unknown names keep the record with no code")

	assert.Equal(t, 1, res.calls["Aland"], "codes are resolved once per country")
	assert.Equal(t, 1, res.calls["Borduria"])

	var sum float64
	for _, r := range records {
		if model.FormatDay(r.Date) == "2020-01-24" {
			sum += r.Confirmed
		}
	}
	assert.Equal(t, 40.0, sum)
}

func TestReshape_MissingRightRowsFillZeroAndNegativeActiveIsKept(t *testing.T) {
	confirmed := table(t, []string{"1", "2", "3"}, []string{"5", "5", "10"})
	deathsDoc := "Province/State,Country/Region,Lat,Long,1/22/20\n,Aland,60.1,19.9,1\n"
	deaths, err := tabular.Decode(strings.NewReader(deathsDoc))
	require.NoError(t, err)
	recovered := table(t, []string{"4", "", "9"}, []string{"0", "0", "0"})

	records, err := Reshape(confirmed, deaths, recovered, newStub())
	require.NoError(t, err)
	require.Len(t, records, 6)

	assert.Equal(t, 1.0, records[0].Deaths)
	assert.Equal(t, 0.0, records[1].Deaths, "absent deaths row is zero")
	assert.Equal(t, 0.0, records[1].Recovered, "empty cell is zero")
	assert.Equal(t, -4.0, records[0].Active)
	assert.Equal(t, 0.0, records[4].Deaths)
}

func TestReshape_CoordinatesJoinNumerically(t *testing.T) {
	decode := func(doc string) *tabular.Table {
		tbl, err := tabular.Decode(strings.NewReader(doc))
		require.NoError(t, err)
		return tbl
	}
	confirmed := decode("Province/State,Country/Region,Lat,Long,1/22/20\n,Aland,60.1,19.9,10\n")
	deaths := decode("Province/State,Country/Region,Lat,Long,1/22/20\n,Aland,60.10,19.90,2\n")
	recovered := decode("Province/State,Country/Region,Lat,Long,1/22/20\n,Aland, 60.100,19.9,3\n")

	records, err := Reshape(confirmed, deaths, recovered, newStub())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].Deaths)
	assert.Equal(t, 3.0, records[0].Recovered)
	assert.Equal(t, 5.0, records[0].Active)
	assert.Equal(t, model.Float(60.1), records[0].Latitude)
}

func TestReshape_SchemaErrors(t *testing.T) {
	good := table(t, []string{"1", "2", "3"}, []string{"1", "2", "3"})

	noKey, err := tabular.Decode(strings.NewReader("Country,1/22/20\nX,1\n"))
	require.NoError(t, err)
	_, err = Reshape(noKey, good, good, newStub())
	assert.ErrorIs(t, err, model.ErrSchema)

	badDate, err := tabular.Decode(strings.NewReader("Province/State,Country/Region,Lat,Long,someday\n,X,1,1,1\n"))
	require.NoError(t, err)
	_, err = Reshape(good, badDate, good, newStub())
	assert.ErrorIs(t, err, model.ErrSchema)

	badCell := table(t, []string{"1", "n/a", "3"}, []string{"1", "2", "3"})
	_, err = Reshape(badCell, good, good, newStub())
	assert.ErrorIs(t, err, model.ErrSchema)

	badLat, err := tabular.Decode(strings.NewReader("Province/State,Country/Region,Lat,Long,1/22/20\n,X,north,1,1\n"))
	require.NoError(t, err)
	_, err = Reshape(good, good, badLat, newStub())
	assert.ErrorIs(t, err, model.ErrSchema)

	_, err = Reshape(good, nil, good, newStub())
	assert.ErrorIs(t, err, model.ErrSchema)
}

func TestFrameRoundTrip(t *testing.T) {
	confirmed := table(t, []string{"10", "20", "30"}, []string{"5", "5", "10"})
	records, err := Reshape(confirmed, confirmed, confirmed, newStub())
	require.NoError(t, err)

	f := Frame(records)
	assert.Equal(t, Columns, f.Header)
	assert.Equal(t, []string{"", "Aland", "60.1", "19.9", "2020-01-22", "10.0", "10.0", "10.0", "ALA", "-10.0"}, f.Rows[0])

	tbl, err := f.Table()
	require.NoError(t, err)
	back, err := FromTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, records, back)
}
