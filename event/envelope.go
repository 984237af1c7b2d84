package event

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical payload delivered to subscribers. Field names and
// ordering are part of the wire contract; existing receivers parse this shape.
type Envelope struct {
	// ID is the per-delivery-chain event ID ("evt_...") subscribers use to
	// deduplicate redelivered events.
	ID string `json:"id"`

	// Type is the dotted event name, e.g. "order.paid".
	Type string `json:"type"`

	// APIVersion is the envelope version the subscriber asked for.
	APIVersion string `json:"apiVersion"`

	// CreatedAt is the UTC RFC3339 timestamp the event was published.
	CreatedAt string `json:"createdAt"`

	// Tenant identifies the tenant the event belongs to.
	Tenant TenantInfo `json:"tenant"`

	// Data is the event payload.
	Data map[string]any `json:"data"`
}

// TenantInfo is the tenant block inside the envelope.
type TenantInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// NewEnvelope renders the canonical envelope for one delivery chain.
func NewEnvelope(eventID string, evt *Event, apiVersion string, now time.Time) *Envelope {
	return &Envelope{
		ID:         eventID,
		Type:       evt.Type.Dotted(),
		APIVersion: apiVersion,
		CreatedAt:  now.UTC().Format(time.RFC3339),
		Tenant: TenantInfo{
			ID:   evt.TenantID,
			Slug: evt.TenantSlug,
		},
		Data: evt.Data,
	}
}

// Marshal serializes the envelope to the exact bytes that are signed and sent.
// The serialized form is persisted on the delivery record so that retries
// re-send identical bytes.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
