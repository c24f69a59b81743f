package forecast

import (
	"strconv"

	"github.com/tigerroll/epiflow/internal/domain/model"
	"github.com/tigerroll/epiflow/internal/tabular"
)

// Columns is the header of a forecast_<metric>.csv artifact.
var Columns = []string{"ds", "yhat", "yhat_lower", "yhat_upper"}

// MetricsColumns is the header of forecast_metrics.csv.
var MetricsColumns = []string{"metric", "history_length", "rmse"}

// Frame renders every point of r.
func Frame(r *model.ForecastResult) *tabular.Frame {
	f := &tabular.Frame{Header: Columns}
	for _, p := range r.Points {
		f.Append(model.FormatDay(p.Date), model.FormatFloat(p.Yhat), model.FormatFloat(p.YhatLower), model.FormatFloat(p.YhatUpper))
	}
	return f
}

// MetricsFrame renders one row per result.
func MetricsFrame(results []*model.ForecastResult) *tabular.Frame {
	f := &tabular.Frame{Header: MetricsColumns}
	for _, r := range results {
		f.Append(string(r.Metric), strconv.Itoa(r.HistoryLength), model.FormatFloat(r.InSampleRMSE))
	}
	return f
}
