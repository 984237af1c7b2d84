// Package delivery implements the delivery ledger and the engine that
// drives webhook attempts, retries, and exhaustion.
package delivery

import (
	"time"

	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
)

// Status is a delivery record's position in its lifecycle.
type Status string

const (
	// StatusPending means the record is persisted and awaiting its first
	// attempt.
	StatusPending Status = "pending"

	// StatusSending marks a record claimed by a worker. A record in this
	// state is never picked up by the sweep; the claim is the mutual
	// exclusion between the immediate dispatch path and the retry loop.
	StatusSending Status = "sending"

	// StatusSuccess means a 2xx response was received. Terminal; a
	// successful delivery is never re-sent.
	StatusSuccess Status = "success"

	// StatusFailed means the subscriber rejected the delivery with a
	// non-retryable client error. Terminal until manually re-armed.
	StatusFailed Status = "failed"

	// StatusRetrying means a transient failure occurred and another
	// attempt is scheduled at NextRetryAt.
	StatusRetrying Status = "retrying"

	// StatusExhausted means the attempt budget or the retry window ran
	// out. Terminal until manually re-armed.
	StatusExhausted Status = "exhausted"
)

// Terminal reports whether the status ends the automatic lifecycle.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusExhausted
}

// Kind distinguishes the two subscriber populations.
type Kind string

const (
	// KindWebhook targets a tenant-configured webhook subscription.
	KindWebhook Kind = "webhook"

	// KindApp targets an installed third-party app.
	KindApp Kind = "app"
)

// Record is one row of the delivery ledger: a single event bound for a
// single subscriber, carrying the exact payload bytes sent on every
// attempt plus the full outcome history of the most recent one.
type Record struct {
	entity.Entity

	// ID uniquely identifies the record (prefix "del").
	ID id.ID `json:"id"`

	// EventID is the per-record event identity (prefix "evt"). Each
	// subscriber of a publish gets its own; all attempts of this record
	// reuse it, so receivers can deduplicate retries by this value.
	EventID id.ID `json:"event_id"`

	// TenantID is the tenant that published the event.
	TenantID string `json:"tenant_id"`

	// Kind says whether the target is a webhook subscription or an app.
	Kind Kind `json:"kind"`

	// SubscriptionID is set when Kind is KindWebhook.
	SubscriptionID id.ID `json:"subscription_id,omitempty"`

	// InstallationID is set when Kind is KindApp.
	InstallationID id.ID `json:"installation_id,omitempty"`

	// EventType is the published type, kept in enum form.
	EventType event.Type `json:"event_type"`

	// URL is the destination captured at publish time. The record keeps
	// delivering here even if the subscription is later re-pointed.
	URL string `json:"url"`

	// Payload is the serialized envelope. Retries re-send these exact
	// bytes; the envelope is never re-rendered.
	Payload []byte `json:"payload"`

	// Status is the record's lifecycle state.
	Status Status `json:"status"`

	// AttemptNumber is the 1-based count of attempts made or in flight.
	AttemptNumber int `json:"attempt_number"`

	// MaxAttempts caps AttemptNumber before the record goes exhausted.
	MaxAttempts int `json:"max_attempts"`

	// NextRetryAt is when the sweep should pick the record up again.
	// Nil for terminal and in-flight records.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// TriggeredAt anchors the retry window: no attempt is scheduled more
	// than the configured window after this instant.
	TriggeredAt time.Time `json:"triggered_at"`

	// DeliveredAt is set when the record reaches success.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// ResponseStatus is the HTTP status of the most recent attempt,
	// 0 when the request never completed.
	ResponseStatus int `json:"response_status,omitempty"`

	// ResponseBody is the subscriber's response body, truncated.
	ResponseBody string `json:"response_body,omitempty"`

	// ErrorMessage describes the most recent transport or handler error.
	ErrorMessage string `json:"error_message,omitempty"`

	// DurationMs is the wall time of the most recent attempt.
	DurationMs int `json:"duration_ms,omitempty"`
}

// Due reports whether the sweep should claim the record at the given
// instant.
func (r *Record) Due(now time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusRetrying {
		return false
	}
	return r.NextRetryAt == nil || !r.NextRetryAt.After(now)
}

// ListOpts configures filtering and pagination for ledger listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}
