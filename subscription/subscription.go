package subscription

import (
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
)

// Subscription is a webhook endpoint registered by a tenant operator for a
// single event type. At most one subscription exists per
// (tenant, url, event type) triple.
type Subscription struct {
	entity.Entity

	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// TenantID identifies the tenant that owns this subscription.
	TenantID string `json:"tenant_id"`

	// Name is a human-readable label chosen by the operator.
	Name string `json:"name"`

	// URL is the delivery URL. Must use https.
	URL string `json:"url"`

	// Secret is the HMAC signing secret for this subscription. Never serialized.
	Secret string `json:"-"`

	// EventType is the single event type this subscription targets.
	EventType event.Type `json:"event_type"`

	// APIVersion selects the envelope version delivered to this subscription.
	APIVersion string `json:"api_version"`

	// Active indicates whether the subscription participates in fan-out.
	Active bool `json:"active"`

	// Paused temporarily excludes the subscription from fan-out without
	// discarding it. History remains queryable while paused.
	Paused bool `json:"paused"`

	// MaxRetries is the maximum number of delivery attempts per chain.
	MaxRetries int `json:"max_retries"`

	// Headers are custom HTTP headers sent with each delivery. They may
	// override the platform headers of the same name.
	Headers map[string]string `json:"headers,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Eligible reports whether the subscription currently receives new events.
func (s *Subscription) Eligible() bool {
	return s.Active && !s.Paused
}

// ListOpts configures filtering and pagination for subscription listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}
