package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/epiflow/pkg/batch/core/pipeline"

// OpenTelemetryTracer implements metrics.Tracer with OpenTelemetry spans.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer backed by tp.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(instrumentationName)}
}

// NewTracerProvider builds an SDK tracer provider. Spans are exported over OTLP
// only when tracing is enabled and an endpoint is configured; otherwise they are
// created and dropped, which keeps span context propagation intact.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.Enabled && cfg.OTLP.Endpoint != "" {
		exporter, err := newSpanExporter(ctx, cfg.OTLP)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newSpanExporter(ctx context.Context, cfg config.OTLPConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
	}
}

func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, e *model.RunExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline "+e.PipelineName, trace.WithAttributes(
		attribute.String("epiflow.run_id", e.ID),
		attribute.String("epiflow.pipeline", e.PipelineName),
	))
	return ctx, func() {
		span.SetAttributes(attribute.String("epiflow.status", e.Status.String()))
		span.End()
	}
}

func (t *OpenTelemetryTracer) StartStageSpan(ctx context.Context, e *model.StageExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "stage "+e.StageName, trace.WithAttributes(
		attribute.String("epiflow.stage", e.StageName),
		attribute.String("epiflow.stage_id", e.ID),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("epiflow.status", e.Status.String()),
			attribute.StringSlice("epiflow.tables", e.TablesWritten),
		)
		span.End()
	}
}

func (t *OpenTelemetryTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attributes)...))
	return ctx, func() { span.End() }
}

func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("epiflow.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
