// Package observability holds the metric instruments and tracing helpers
// used across the delivery pipeline. Both are optional: a nil *Metrics or
// *Tracer disables them.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for the hooks engine, backed by any
// go-utils MetricFactory (e.g. the forge-managed metrics system via
// fapp.Metrics()).
type Metrics struct {
	EventsPublishedTotal gu.Counter
	DeliveriesTotal      gu.Counter
	DeliveryLatency      gu.Histogram
	PendingDeliveries    gu.Gauge
}

// NewMetrics creates the engine's metric instruments using the supplied
// factory. Pass fapp.Metrics() from a forge extension, or
// metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsPublishedTotal: factory.Counter("hooks_events_published_total"),
		DeliveriesTotal:      factory.Counter("hooks_deliveries_total"),
		DeliveryLatency:      factory.Histogram("hooks_delivery_latency_seconds"),
		PendingDeliveries:    factory.Gauge("hooks_pending_deliveries"),
	}
}

// RecordPublish records a published event. The pending gauge moves
// per-record as the ledger rows are created and resolved.
func (m *Metrics) RecordPublish(eventType string) {
	m.EventsPublishedTotal.WithLabels(map[string]string{"type": eventType}).Inc()
}

// RecordDelivery records a delivery attempt with its resulting status and
// latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
