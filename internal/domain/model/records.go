// Package model holds the tables exchanged between pipeline stages and written
// as artifacts.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Metric names a case column that can be forecast.
type Metric string

const (
	MetricConfirmed Metric = "Confirmed"
	MetricDeaths    Metric = "Deaths"
	MetricRecovered Metric = "Recovered"
	MetricActive    Metric = "Active"
)

// Metrics lists every forecastable metric in column order.
var Metrics = []Metric{MetricConfirmed, MetricDeaths, MetricRecovered, MetricActive}

// ParseMetric resolves a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q (want one of %v)", s, Metrics)
}

// CaseRecord is one (region, country, date) row of the canonical case dataset.
type CaseRecord struct {
	// Region is the province or state; empty means none.
	Region    string
	Country   string
	Latitude  NullFloat
	Longitude NullFloat
	Date      time.Time
	Confirmed float64
	Deaths    float64
	Recovered float64
	// Active is Confirmed - Deaths - Recovered. It is negative when recoveries
	// are over-reported and is kept as is.
	Active float64
	// CountryCode is the ISO 3166-1 alpha-3 code; empty when the name is unknown.
	CountryCode string
}

// Value returns the column named by m.
func (r CaseRecord) Value(m Metric) float64 {
	switch m {
	case MetricConfirmed:
		return r.Confirmed
	case MetricDeaths:
		return r.Deaths
	case MetricRecovered:
		return r.Recovered
	case MetricActive:
		return r.Active
	}
	return 0
}

// VaccinationRecord is one (country, date) row of the normalised vaccination dataset.
type VaccinationRecord struct {
	Country string
	ISOCode string
	Date    time.Time
	// Metrics is aligned with VaccinationTable.MetricColumns.
	Metrics []NullFloat
	// Reported marks which Metrics were present in the source rather than filled.
	Reported []bool
	// Metadata is aligned with VaccinationTable.MetadataColumns.
	Metadata []string
}

// VaccinationTable is the joined vaccination series plus per-country metadata.
type VaccinationTable struct {
	MetricColumns   []string
	MetadataColumns []string
	Records         []VaccinationRecord
}

// MetricIndex returns the position of a metric column, or -1.
func (t *VaccinationTable) MetricIndex(name string) int {
	return indexOf(t.MetricColumns, name)
}

// MetadataIndex returns the position of a metadata column, or -1.
func (t *VaccinationTable) MetadataIndex(name string) int {
	return indexOf(t.MetadataColumns, name)
}

// WithRecords returns a table with the same columns and the given rows.
func (t *VaccinationTable) WithRecords(records []VaccinationRecord) *VaccinationTable {
	return &VaccinationTable{
		MetricColumns:   t.MetricColumns,
		MetadataColumns: t.MetadataColumns,
		Records:         records,
	}
}

// Countries returns the distinct country names in first-appearance order.
func (t *VaccinationTable) Countries() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Records {
		if _, ok := seen[r.Country]; ok {
			continue
		}
		seen[r.Country] = struct{}{}
		out = append(out, r.Country)
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

// SummaryRecord is one row of the per-country summary.
type SummaryRecord struct {
	Country        string
	Population     NullFloat
	TotalTests     NullFloat
	TotalConfirmed NullFloat
	// Extra is aligned with SummaryTable.ExtraColumns.
	Extra                []string
	VaccineManufacturers string
	// VaccinationMax is aligned with SummaryTable.VaccinationColumns.
	VaccinationMax    []NullFloat
	VaccinatedPercent NullFloat
	TestedPositive    NullFloat
}

// SummaryTable is the per-country summary with its dynamic columns.
type SummaryTable struct {
	ExtraColumns       []string
	VaccinationColumns []string
	Records            []SummaryRecord
}

// DailyComparisonRecord is one global row of the daily case/vaccination comparison.
type DailyComparisonRecord struct {
	Date                  time.Time
	DailyNewCases         NullFloat
	CumulativeTotalCases  NullFloat
	CumulativeTotalDeaths NullFloat
	ActiveCases           NullFloat
	DailyVaccinations     NullFloat
	TotalVaccinations     NullFloat
}

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date      time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
}

// ForecastResult is the forecast of one metric over history plus horizon.
type ForecastResult struct {
	Metric Metric
	// Points cover every history date followed by the horizon days, ascending.
	Points []ForecastPoint
	// HistoryLength is the number of leading Points that correspond to observed dates.
	HistoryLength int
	InSampleRMSE  float64
}

// ReconciliationReport describes what reconciliation did to each vaccination-source name.
type ReconciliationReport struct {
	// Aliased maps each renamed source name to its canonical name.
	Aliased map[string]string
	// Excluded lists dropped source names, sorted.
	Excluded []string
	// Unmatched lists passed-through names absent from the canonical set, sorted.
	Unmatched []string
}
