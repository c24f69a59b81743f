package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
)

func finishedRun(t *testing.T, status model.BatchStatus) *model.RunExecution {
	t.Helper()
	run := model.NewRunExecution("epidemicPipeline")
	require.NoError(t, run.MarkAsStarted())
	if status == model.BatchStatusFailed {
		require.NoError(t, run.MarkAsFailed(errors.New("boom")))
	} else {
		require.NoError(t, run.MarkAsCompleted())
	}
	return run
}

func TestPrometheusRecorder_CountsRunsAndDomainEvents(t *testing.T) {
	r := NewPrometheusRecorder("epiflow", "", "epidemicPipeline")
	ctx := context.Background()

	r.RecordRunEnd(ctx, finishedRun(t, model.BatchStatusCompleted))
	r.RecordRunEnd(ctx, finishedRun(t, model.BatchStatusFailed))
	r.RecordFetch(ctx, "confirmed", 1024, 2, nil)
	r.RecordFetch(ctx, "deaths", 0, 4, errors.New("503"))
	r.RecordRows(ctx, "cases", 6)
	r.RecordUnmatchedCountries(ctx, 3)
	r.RecordForecast(ctx, "Confirmed", 12.5, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("epidemicPipeline", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("epidemicPipeline", "FAILED")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(r.fetchBytes.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues("deaths")))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.tableRows.WithLabelValues("cases")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.unmatchedCountries))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.forecastRMSE.WithLabelValues("Confirmed")))
}

func TestPrometheusRecorder_FlushPushesToGateway(t *testing.T) {
	var pushes atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pushes.Add(1)
		path.Store(req.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewPrometheusRecorder("epiflow", srv.URL, "epidemicPipeline")
	r.RecordRows(context.Background(), "cases", 1)

	require.NoError(t, r.Flush(context.Background()))
	assert.Equal(t, int32(1), pushes.Load())
	assert.True(t, strings.HasSuffix(path.Load().(string), "/job/epidemicPipeline"))
}

func TestPrometheusRecorder_FlushWithoutGatewayIsNoop(t *testing.T) {
	assert.NoError(t, NewPrometheusRecorder("", "", "x").Flush(context.Background()))
}

func TestOTelRecorder_RecordsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelRecorder(provider, "epiflow")
	require.NoError(t, err)

	ctx := context.Background()
	r.RecordRunEnd(ctx, finishedRun(t, model.BatchStatusCompleted))
	r.RecordUnmatchedCountries(ctx, 2)
	r.RecordForecast(ctx, "Deaths", 3.5, time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["epiflow.run.status"])
	assert.True(t, names["epiflow.reconciliation.unmatched"])
	assert.True(t, names["epiflow.forecast.rmse"])
	require.NoError(t, r.Flush(ctx))
}

func TestOpenTelemetryTracer_SpansNestAndCarryErrors(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(tp)

	run := model.NewRunExecution("epidemicPipeline")
	ctx, endRun := tracer.StartRunSpan(context.Background(), run)
	stage := model.NewStageExecution("fetchCases")
	stageCtx, endStage := tracer.StartStageSpan(ctx, stage)
	tracer.RecordEvent(stageCtx, "download", map[string]interface{}{"source": "confirmed", "bytes": 10})
	tracer.RecordError(stageCtx, "reader", errors.New("timeout"))
	endStage()
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "stage fetchCases", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 2, "custom event plus recorded exception")
	assert.Equal(t, "pipeline epidemicPipeline", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
