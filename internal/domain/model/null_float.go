package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a numeric cell that may be missing. The zero value is null.
type NullFloat struct {
	V     float64
	Valid bool
}

// Float returns a valid NullFloat holding v.
func Float(v float64) NullFloat {
	return NullFloat{V: v, Valid: true}
}

// Null returns a missing value.
func Null() NullFloat {
	return NullFloat{}
}

// ParseNullFloat parses a CSV cell. Empty cells and "NaN" are null.
func ParseNullFloat(s string) (NullFloat, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return Null(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null(), fmt.Errorf("not a number: %q", s)
	}
	return Float(v), nil
}

// OrZero returns the value, or 0 when null.
func (n NullFloat) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.V
}

// String renders the value for CSV output; null renders as an empty cell.
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return FormatFloat(n.V)
}

// FormatFloat renders v in the shortest form that round-trips.
func FormatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ratio returns num / den × 100, or null when either side is null or den is zero.
func Ratio(num, den NullFloat) NullFloat {
	if !num.Valid || !den.Valid || den.V == 0 {
		return Null()
	}
	return Float(num.V / den.V * 100)
}
