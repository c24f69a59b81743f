package model

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the format of every date written to an artifact.
const DayLayout = "2006-01-02"

// dayLayouts are the date spellings found across the sources: ISO dates from the
// vaccination and snapshot tables, and US month/day/year headers on the wide
// case tables.
var dayLayouts = []string{
	"2006-1-2",
	"1/2/06",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDay parses s and truncates it to a calendar day in UTC.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Day drops the time-of-day component of t.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay formats t with DayLayout.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// AddDays returns the calendar day n days after t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}
