package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// endedSpans produces one slow trace (root plus child) and one fast trace
// (root plus child) with fabricated timestamps, returning all four spans.
func endedSpans(t *testing.T) []sdktrace.ReadOnlySpan {
	t.Helper()

	tp := sdktrace.NewTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	base := time.Now()

	slowCtx, slowRoot := tracer.Start(context.Background(), "slow_root", trace.WithTimestamp(base))
	_, slowChild := tracer.Start(slowCtx, "slow_child", trace.WithTimestamp(base))
	slowChild.End(trace.WithTimestamp(base.Add(40 * time.Millisecond)))
	slowRoot.End(trace.WithTimestamp(base.Add(250 * time.Millisecond)))

	fastCtx, fastRoot := tracer.Start(context.Background(), "fast_root", trace.WithTimestamp(base))
	_, fastChild := tracer.Start(fastCtx, "fast_child", trace.WithTimestamp(base))
	fastChild.End(trace.WithTimestamp(base.Add(10 * time.Millisecond)))
	fastRoot.End(trace.WithTimestamp(base.Add(50 * time.Millisecond)))

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	return spans
}

func TestSlowTraceSpanExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps_only_traces_over_the_minimum", func(t *testing.T) {
		inner := tracetest.NewInMemoryExporter()
		exporter := NewSlowTraceSpanExporter(inner, WithMinimumDuration(100*time.Millisecond))

		require.NoError(t, exporter.ExportSpans(ctx, endedSpans(t)))

		got := inner.GetSpans()
		require.Len(t, got, 2)

		names := []string{got[0].Name, got[1].Name}
		require.ElementsMatch(t, []string{"slow_root", "slow_child"}, names)
	})

	t.Run("zero_threshold_keeps_everything", func(t *testing.T) {
		inner := tracetest.NewInMemoryExporter()
		exporter := NewSlowTraceSpanExporter(inner, WithMinimumDuration(0))

		require.NoError(t, exporter.ExportSpans(ctx, endedSpans(t)))
		require.Len(t, inner.GetSpans(), 4)
	})

	t.Run("nil_exporter_does_nothing", func(t *testing.T) {
		exporter := NewSlowTraceSpanExporter(nil)

		require.NoError(t, exporter.ExportSpans(ctx, endedSpans(t)))
		require.NoError(t, exporter.Shutdown(ctx))
	})
}
