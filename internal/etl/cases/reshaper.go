// Package cases reshapes the three wide case tables into the canonical long
// case dataset.
package cases

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Key columns shared by the wide case tables.
const (
	ColRegion  = "Province/State"
	ColCountry = "Country/Region"
	ColLat     = "Lat"
	ColLong    = "Long"
)

// Columns is the header of the canonical case dataset.
var Columns = []string{ColRegion, ColCountry, ColLat, ColLong, "Date", "Confirmed", "Deaths", "Recovered", "iso_code", "Active"}

var keyColumns = []string{ColRegion, ColCountry, ColLat, ColLong}

// CodeResolver maps a country name to its ISO alpha-3 code.
type CodeResolver interface {
	Code(name string) (string, bool)
}

// joinKey holds coordinates in canonical numeric form so that 60.1 and 60.10
// join.
type joinKey struct {
	region, country, lat, long string
	date                       time.Time
}

type longCell struct {
	key       joinKey
	lat, long model.NullFloat
	value     float64
}

// Reshape melts each table, left-joins deaths and recovered onto confirmed,
// fills absent metrics with zero, derives Active and attaches country codes.
// Output follows confirmed row order, then date column order.
func Reshape(confirmed, deaths, recovered *tabular.Table, resolver CodeResolver) ([]model.CaseRecord, error) {
	anchor, err := melt("confirmed", confirmed)
	if err != nil {
		return nil, err
	}
	deathCells, err := melt("deaths", deaths)
	if err != nil {
		return nil, err
	}
	recoveredCells, err := melt("recovered", recovered)
	if err != nil {
		return nil, err
	}
	deathsByKey := index(deathCells)
	recoveredByKey := index(recoveredCells)

	codes := make(map[string]string)
	out := make([]model.CaseRecord, 0, len(anchor))
	for _, c := range anchor {
		code, seen := codes[c.key.country]
		if !seen {
			code, _ = resolver.Code(c.key.country)
			codes[c.key.country] = code
		}
		r := model.CaseRecord{
			Region:      c.key.region,
			Country:     c.key.country,
			Latitude:    c.lat,
			Longitude:   c.long,
			Date:        c.key.date,
			Confirmed:   c.value,
			Deaths:      deathsByKey[c.key],
			Recovered:   recoveredByKey[c.key],
			CountryCode: code,
		}
		r.Active = r.Confirmed - r.Deaths - r.Recovered
		out = append(out, r)
	}
	return out, nil
}

func melt(name string, t *tabular.Table) ([]longCell, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: %s table is missing", model.ErrSchema, name)
	}
	rows, err := tabular.Melt(t, keyColumns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	dates := make(map[string]time.Time)
	out := make([]longCell, 0, len(rows))
	for _, r := range rows {
		d, ok := dates[r.Variable]
		if !ok {
			d, err = model.ParseDay(r.Variable)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: date column: %v", model.ErrSchema, name, err)
			}
			dates[r.Variable] = d
		}
		v, err := parseCount(r.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s on %s: %v", model.ErrSchema, name, r.IDs[1], r.Variable, err)
		}
		lat, err := model.ParseNullFloat(r.IDs[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: latitude of %s: %v", model.ErrSchema, name, r.IDs[1], err)
		}
		long, err := model.ParseNullFloat(r.IDs[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: longitude of %s: %v", model.ErrSchema, name, r.IDs[1], err)
		}
		out = append(out, longCell{
			key:   joinKey{region: r.IDs[0], country: r.IDs[1], lat: lat.String(), long: long.String(), date: d},
			lat:   lat,
			long:  long,
			value: v,
		})
	}
	return out, nil
}

// index keeps the first value seen for each key.
func index(cells []longCell) map[joinKey]float64 {
	m := make(map[joinKey]float64, len(cells))
	for _, c := range cells {
		if _, dup := m[c.key]; !dup {
			m[c.key] = c.value
		}
	}
	return m
}

func parseCount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
