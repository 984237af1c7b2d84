package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/storekit/hooks"

// Tracer provides OpenTelemetry tracing for the delivery pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, eventID, eventType string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hooks.delivery",
		trace.WithAttributes(
			attribute.String("hooks.delivery_id", deliveryID),
			attribute.String("hooks.event_id", eventID),
			attribute.String("hooks.event_type", eventType),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, durationMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("hooks.duration_ms", durationMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("hooks.error", err))
	}
	span.End()
}
