package subscription

import (
	"context"

	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
)

// Store defines the persistence contract for webhook subscriptions.
type Store interface {
	// CreateSubscription persists a new subscription. Implementations must
	// enforce the (tenant, url, event type) uniqueness invariant and return
	// hooks.ErrDuplicateSubscription on conflict.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription returns a subscription by ID.
	GetSubscription(ctx context.Context, subID id.ID) (*Subscription, error)

	// UpdateSubscription modifies an existing subscription. The uniqueness
	// invariant applies to updates as well.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// DeleteSubscription removes a subscription. Delivery history survives.
	DeleteSubscription(ctx context.Context, subID id.ID) error

	// ListSubscriptions returns subscriptions for a tenant.
	ListSubscriptions(ctx context.Context, tenantID string, opts ListOpts) ([]*Subscription, error)

	// ResolveSubscriptions finds the active, unpaused subscriptions targeting
	// an event type for a tenant. This is the publish-time hot path.
	ResolveSubscriptions(ctx context.Context, tenantID string, eventType event.Type) ([]*Subscription, error)

	// SetPaused pauses or resumes a subscription without deleting it.
	SetPaused(ctx context.Context, subID id.ID, paused bool) error
}
