package forecast

import (
	"math"
	"time"
)

// design builds the regression row of a date: intercept, linear trend, one
// hinge per changepoint, then sine/cosine pairs of the seasonality.
type design struct {
	start  time.Time
	span   float64
	period float64
	order  int
	// cps are changepoint positions on the scaled time axis.
	cps []float64
}

func (d design) width() int {
	return 2 + len(d.cps) + 2*d.order
}

func (d design) row(date time.Time) []float64 {
	days := date.Sub(d.start).Hours() / 24
	t := days / d.span

	row := make([]float64, 0, d.width())
	row = append(row, 1, t)
	for _, c := range d.cps {
		row = append(row, math.Max(0, t-c))
	}
	epochDays := float64(date.Unix()) / 86400
	for k := 1; k <= d.order; k++ {
		arg := 2 * math.Pi * float64(k) * epochDays / d.period
		row = append(row, math.Sin(arg), math.Cos(arg))
	}
	return row
}

// changepoints spreads up to k changepoints evenly over the first share of the
// history, placed on observed dates and never on the first one.
func changepoints(dates []time.Time, start time.Time, span float64, k int, share float64) []float64 {
	last := int(math.Floor(float64(len(dates)-1) * share))
	if k > last {
		k = last
	}
	if k <= 0 {
		return nil
	}
	out := make([]float64, 0, k)
	for i := 1; i <= k; i++ {
		idx := int(math.Round(float64(i) * float64(last) / float64(k)))
		out = append(out, dates[idx].Sub(start).Hours()/24/span)
	}
	return out
}
