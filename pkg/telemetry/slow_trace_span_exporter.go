package telemetry

import (
	"context"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMinimumDurationInMs = 1000

type slowTraceSpanExporter struct {
	wrappedExporter sdktrace.SpanExporter

	minimum time.Duration
}

type SlowTraceSpanExporterOption func(o *SlowTraceSpanExporterOptions)

type SlowTraceSpanExporterOptions struct {
	Minimum time.Duration
}

func WithMinimumDuration(minimum time.Duration) SlowTraceSpanExporterOption {
	return func(o *SlowTraceSpanExporterOptions) {
		o.Minimum = minimum
	}
}

var _ sdktrace.SpanExporter = (*slowTraceSpanExporter)(nil)

// NewSlowTraceSpanExporter creates a SpanExporter that forwards spans to the
// given exporter only for traces whose root span took at least the minimum
// duration to complete. A root span and its children are kept or dropped
// together, provided they arrive in the same batch.
//
// If the exporter is nil, the span exporter will do nothing.
func NewSlowTraceSpanExporter(exporter sdktrace.SpanExporter, options ...SlowTraceSpanExporterOption) *slowTraceSpanExporter {
	o := SlowTraceSpanExporterOptions{
		Minimum: time.Duration(DefaultMinimumDurationInMs) * time.Millisecond,
	}
	for _, opt := range options {
		opt(&o)
	}

	return &slowTraceSpanExporter{
		wrappedExporter: exporter,
		minimum:         o.Minimum,
	}
}

func (t slowTraceSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if t.wrappedExporter == nil {
		return nil
	}

	slowTraces := make(map[trace.TraceID]struct{})

	for _, span := range spans {
		if !span.Parent().IsValid() {
			// root span of its trace

			duration := span.EndTime().Sub(span.StartTime())

			if duration >= t.minimum {
				slowTraces[span.SpanContext().TraceID()] = struct{}{}
			}
		}
	}

	kept := make([]sdktrace.ReadOnlySpan, 0, len(spans))

	for _, span := range spans {
		if _, ok := slowTraces[span.SpanContext().TraceID()]; ok {
			kept = append(kept, span)
		}
	}

	return t.wrappedExporter.ExportSpans(ctx, kept)
}

func (t slowTraceSpanExporter) Shutdown(ctx context.Context) error {
	if t.wrappedExporter == nil {
		return nil
	}
	return t.wrappedExporter.Shutdown(ctx)
}
