package hostapi

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// slogSpanExporter is a minimal trace.SpanExporter that logs each
// finished span through slog instead of shipping it to a collector.
// pkg/host emits runner:*/job:*/core:* spans against whatever
// TracerProvider is globally registered; without one registered they
// run against the SDK's no-op default and are silently dropped. This
// is the one concrete backend this module wires: a sink that logs, not
// a collector integration, since a real exporter target (OTLP
// endpoint, Jaeger, etc.) is an operator choice.
type slogSpanExporter struct {
	logger *slog.Logger
}

func (e *slogSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Info("trace span",
			"name", s.Name(),
			"traceId", s.SpanContext().TraceID().String(),
			"spanId", s.SpanContext().SpanID().String(),
			"durationMs", s.EndTime().Sub(s.StartTime()).Milliseconds(),
		)
	}
	return nil
}

func (e *slogSpanExporter) Shutdown(context.Context) error { return nil }

// NewTracerProvider builds a batching SDK TracerProvider logging
// finished spans through logger and registers it as the global
// provider, so every otel.Tracer(...) call across the module —
// pkg/host's runner/job/compute trace events in particular — produces
// real spans instead of running against the SDK's no-op default.
// Callers should defer the returned shutdown func.
func NewTracerProvider(logger *slog.Logger) (shutdown func(context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&slogSpanExporter{logger: logger}),
		sdktrace.WithResource(resource.Default()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
