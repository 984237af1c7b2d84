package delivery

import (
	"context"
	"time"

	"github.com/storekit/hooks/id"
)

// Store defines the persistence contract for the delivery ledger.
type Store interface {
	// CreateDelivery persists a new ledger record.
	CreateDelivery(ctx context.Context, rec *Record) error

	// UpdateDelivery writes the record's current state back.
	UpdateDelivery(ctx context.Context, rec *Record) error

	// GetDelivery returns a record by ID.
	GetDelivery(ctx context.Context, recID id.ID) (*Record, error)

	// GetDeliveryByEventID returns the record carrying the given eventId.
	GetDeliveryByEventID(ctx context.Context, eventID id.ID) (*Record, error)

	// ListDeliveriesBySubscription returns a subscription's records,
	// newest first.
	ListDeliveriesBySubscription(ctx context.Context, subID id.ID, opts ListOpts) ([]*Record, error)

	// ListDeliveriesByTenant returns a tenant's records across all
	// subscribers, newest first.
	ListDeliveriesByTenant(ctx context.Context, tenantID string, opts ListOpts) ([]*Record, error)

	// ClaimDue atomically moves up to limit due records (pending or
	// retrying with nextRetryAt <= now) to sending and returns them.
	// A record returned here is owned by the caller until it writes a
	// new status via UpdateDelivery.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Record, error)

	// ClaimDelivery atomically moves a single pending or retrying record
	// to sending. Returns false when the record is in any other state,
	// including already claimed.
	ClaimDelivery(ctx context.Context, recID id.ID) (*Record, bool, error)

	// CountDeliveriesByStatus returns per-status record counts for a
	// tenant. Empty tenantID counts the whole ledger.
	CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[Status]int, error)
}
