// Package forecast fits an additive trend plus yearly seasonality model to the
// global daily series of a case metric and projects it forward.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tigerroll/epiflow/internal/domain/model"
)

// Options tune the model.
type Options struct {
	// HorizonDays is how many days past the last observation are predicted.
	HorizonDays int
	// IntervalWidth is the coverage of the uncertainty bounds, e.g. 0.8.
	IntervalWidth float64
	// Changepoints is the maximum number of trend changepoints.
	Changepoints int
	// ChangepointRange is the leading share of history that may hold changepoints.
	ChangepointRange float64
	// FourierOrder is the number of sine/cosine pairs of the yearly seasonality.
	FourierOrder int
	// Regularization is the ridge penalty on every coefficient but the intercept.
	Regularization float64
	// Period is the seasonal period in days.
	Period float64
}

// DefaultOptions returns the standard yearly model with a 365 day horizon.
func DefaultOptions() Options {
	return Options{
		HorizonDays:      365,
		IntervalWidth:    0.8,
		Changepoints:     25,
		ChangepointRange: 0.8,
		FourierOrder:     10,
		Regularization:   0.05,
		Period:           365.25,
	}
}

// Series is a daily series with strictly increasing dates.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Dates) }

// Aggregate sums metric across every record sharing a date.
func Aggregate(records []model.CaseRecord, metric model.Metric) Series {
	sums := make(map[time.Time]float64)
	for _, r := range records {
		sums[model.Day(r.Date)] += r.Value(metric)
	}
	s := Series{Dates: make([]time.Time, 0, len(sums))}
	for d := range sums {
		s.Dates = append(s.Dates, d)
	}
	sort.Slice(s.Dates, func(a, b int) bool { return s.Dates[a].Before(s.Dates[b]) })
	s.Values = make([]float64, len(s.Dates))
	for i, d := range s.Dates {
		s.Values[i] = sums[d]
	}
	return s
}

// Engine fits forecasts.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine. Zero-valued options take their defaults.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = def.HorizonDays
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = def.IntervalWidth
	}
	if opts.Changepoints < 0 {
		opts.Changepoints = 0
	}
	if opts.ChangepointRange <= 0 || opts.ChangepointRange > 1 {
		opts.ChangepointRange = def.ChangepointRange
	}
	if opts.FourierOrder < 0 {
		opts.FourierOrder = 0
	}
	if opts.Regularization <= 0 {
		opts.Regularization = 1e-8
	}
	if opts.Period <= 0 {
		opts.Period = def.Period
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Forecast aggregates records into the global series of metric and fits it.
func (e *Engine) Forecast(ctx context.Context, records []model.CaseRecord, metric model.Metric) (*model.ForecastResult, error) {
	res, err := e.Fit(ctx, Aggregate(records, metric))
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", metric, err)
	}
	res.Metric = metric
	return res, nil
}

// Fit fits s and predicts every history date followed by HorizonDays days.
func (e *Engine) Fit(ctx context.Context, s Series) (*model.ForecastResult, error) {
	n := s.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dates, got %d", model.ErrForecastFit, n)
	}
	if len(s.Values) != n {
		return nil, fmt.Errorf("%w: %d dates but %d values", model.ErrForecastFit, n, len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value on %s", model.ErrForecastFit, model.FormatDay(s.Dates[i]))
		}
		if i > 0 && !s.Dates[i].After(s.Dates[i-1]) {
			return nil, fmt.Errorf("%w: dates are not strictly increasing at %s", model.ErrForecastFit, model.FormatDay(s.Dates[i]))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := s.Dates[0]
	span := s.Dates[n-1].Sub(start).Hours() / 24
	scale := 0.0
	for _, v := range s.Values {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 {
		scale = 1
	}

	d := design{
		start:  start,
		span:   span,
		period: e.opts.Period,
		order:  e.opts.FourierOrder,
		cps:    changepoints(s.Dates, start, span, e.opts.Changepoints, e.opts.ChangepointRange),
	}

	x := mat.NewDense(n, d.width(), nil)
	y := mat.NewVecDense(n, nil)
	for i, date := range s.Dates {
		x.SetRow(i, d.row(date))
		y.SetVec(i, s.Values[i]/scale)
	}

	beta, err := ridge(x, y, e.opts.Regularization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrForecastFit, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	for i, date := range s.Dates {
		fitted[i] = mat.Dot(mat.NewVecDense(d.width(), d.row(date)), beta) * scale
		residuals[i] = s.Values[i] - fitted[i]
	}
	sigma := stat.StdDev(residuals, nil)
	if math.IsNaN(sigma) {
		sigma = 0
	}
	z := distuv.UnitNormal.Quantile(0.5 + e.opts.IntervalWidth/2)

	res := &model.ForecastResult{
		Points:        make([]model.ForecastPoint, 0, n+e.opts.HorizonDays),
		HistoryLength: n,
	}
	for i, date := range s.Dates {
		res.Points = append(res.Points, point(date, fitted[i], z*sigma))
	}
	last := s.Dates[n-1]
	for h := 1; h <= e.opts.HorizonDays; h++ {
		date := model.AddDays(last, h)
		yhat := mat.Dot(mat.NewVecDense(d.width(), d.row(date)), beta) * scale
		res.Points = append(res.Points, point(date, yhat, z*sigma*math.Sqrt(1+float64(h)/float64(n))))
	}

	res.InSampleRMSE, err = RMSE(s.Values, yhats(res.Points))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrForecastFit, err)
	}
	return res, nil
}

func point(date time.Time, yhat, halfWidth float64) model.ForecastPoint {
	return model.ForecastPoint{Date: date, Yhat: yhat, YhatLower: yhat - halfWidth, YhatUpper: yhat + halfWidth}
}

func yhats(points []model.ForecastPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Yhat
	}
	return out
}

// RMSE compares actual with the leading len(actual) predictions. predicted may
// be longer, as a forecast extends past the history.
func RMSE(actual, predicted []float64) (float64, error) {
	n := len(actual)
	if n == 0 {
		return 0, fmt.Errorf("no observations to score")
	}
	if len(predicted) < n {
		return 0, fmt.Errorf("%d predictions cannot score %d observations", len(predicted), n)
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(n)), nil
}

// ridge solves (XᵀX + λD)β = Xᵀy where D is the identity without the intercept.
func ridge(x *mat.Dense, y *mat.VecDense, lambda float64) (*mat.VecDense, error) {
	_, p := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 1; i < p; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		// A Condition error still carries a usable solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return &beta, nil
}
