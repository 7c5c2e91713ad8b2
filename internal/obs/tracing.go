package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewTracerProvider builds a tracer provider whose spans are exported to
// logger rather than over OTLP: the engine runs single-invocation,
// single-process traces, and pulling in the OTLP exporter submodules
// bought nothing a structured log line doesn't already give an operator
// (see DESIGN.md). The SDK and API packages are still the real
// OpenTelemetry ones; only the exporter is local.
func NewTracerProvider(logger *zap.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(&zapExporter{logger: logger})),
	)
}

// Tracer returns the named tracer from the global provider set by
// SetGlobal.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SetGlobal installs tp as the process-wide tracer provider.
func SetGlobal(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// zapExporter adapts the SDK's SpanExporter interface to a zap logger.
type zapExporter struct {
	logger *zap.Logger
}

func (e *zapExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Debug("span",
			zap.String("name", s.Name()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
		)
	}
	return nil
}

func (e *zapExporter) Shutdown(context.Context) error { return nil }
