package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "modelgate"

// StartCompletionSpan starts a span covering one backend round trip.
func StartCompletionSpan(ctx context.Context, model, backendName string, stream bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("model", model),
			attribute.String("backend", backendName),
			attribute.Bool("stream", stream),
		),
	)
}

// StartProbeSpan starts a span for a backend readiness probe.
func StartProbeSpan(ctx context.Context, backendName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "probe",
		trace.WithAttributes(attribute.String("backend", backendName)),
	)
}
