package subscription

import "github.com/storekit/hooks/event"

// Input is the creation/update payload for subscriptions.
type Input struct {
	// TenantID identifies the tenant that owns this subscription.
	TenantID string `json:"tenant_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL. Must use https.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Auto-generated if empty on create.
	Secret string `json:"secret"`

	// EventType is the single event type this subscription targets.
	EventType event.Type `json:"event_type"`

	// APIVersion selects the envelope version. Defaults to "v1".
	APIVersion string `json:"api_version"`

	// MaxRetries is the maximum delivery attempts per chain. Defaults to the
	// engine-wide setting when zero.
	MaxRetries int `json:"max_retries"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}
