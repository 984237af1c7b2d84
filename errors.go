package hooks

import "errors"

// Sentinel errors returned by hooks operations.
var (
	// ErrNoStore is returned when a Hub is created without a store.
	ErrNoStore = errors.New("hooks: store is required")

	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = errors.New("hooks: subscription not found")

	// ErrDuplicateSubscription is returned when a tenant already has a
	// subscription with the same URL and event type.
	ErrDuplicateSubscription = errors.New("hooks: duplicate subscription")

	// ErrInstallationNotFound is returned when an app installation cannot be found.
	ErrInstallationNotFound = errors.New("hooks: installation not found")

	// ErrDeliveryNotFound is returned when a delivery record cannot be found.
	ErrDeliveryNotFound = errors.New("hooks: delivery not found")

	// ErrRetryNotAllowed is returned when manually retrying a delivery
	// that already succeeded.
	ErrRetryNotAllowed = errors.New("hooks: delivery already succeeded")

	// ErrUnknownEventType is returned when publishing a type outside the
	// registered set.
	ErrUnknownEventType = errors.New("hooks: unknown event type")

	// ErrPayloadValidationFailed is returned when event data fails JSON
	// Schema validation.
	ErrPayloadValidationFailed = errors.New("hooks: payload validation failed")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("hooks: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("hooks: migration failed")
)
