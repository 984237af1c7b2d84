// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	hookstore "github.com/storekit/hooks/store"
	"github.com/storekit/hooks/subscription"
)

// compile-time interface check.
var _ hookstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription // keyed by ID string
	installations map[string]*installation.Installation // keyed by ID string
	deliveries    map[string]*delivery.Record           // keyed by ID string
	byEventID     map[string]string                     // eventId → record ID

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		installations: make(map[string]*installation.Installation),
		deliveries:    make(map[string]*delivery.Record),
		byEventID:     make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hooks.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

// CreateSubscription persists a new subscription, enforcing the
// (tenant, url, event type) uniqueness invariant.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.TenantID == sub.TenantID && existing.URL == sub.URL && existing.EventType == sub.EventType {
			return hooks.ErrDuplicateSubscription
		}
	}

	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(_ context.Context, subID id.ID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return nil, hooks.ErrSubscriptionNotFound
	}
	return sub, nil
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return hooks.ErrSubscriptionNotFound
	}

	for _, existing := range s.subscriptions {
		if existing.ID.String() == sub.ID.String() {
			continue
		}
		if existing.TenantID == sub.TenantID && existing.URL == sub.URL && existing.EventType == sub.EventType {
			return hooks.ErrDuplicateSubscription
		}
	}

	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// DeleteSubscription removes a subscription. Delivery records survive.
func (s *Store) DeleteSubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[subID.String()]; !ok {
		return hooks.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, subID.String())
	return nil
}

// ListSubscriptions returns subscriptions for a tenant, optionally filtered.
func (s *Store) ListSubscriptions(_ context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if opts.Active != nil && sub.Active != *opts.Active {
			continue
		}
		result = append(result, sub)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ResolveSubscriptions finds the active, unpaused subscriptions for an
// event type.
func (s *Store) ResolveSubscriptions(_ context.Context, tenantID string, eventType event.Type) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID || !sub.Eligible() {
			continue
		}
		if sub.EventType != eventType {
			continue
		}
		result = append(result, sub)
	}
	return result, nil
}

// SetPaused pauses or resumes a subscription.
func (s *Store) SetPaused(_ context.Context, subID id.ID, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return hooks.ErrSubscriptionNotFound
	}
	sub.Paused = paused
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// installation.Store
// ──────────────────────────────────────────────────

// CreateInstallation persists a new installation.
func (s *Store) CreateInstallation(_ context.Context, inst *installation.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.installations[inst.ID.String()] = inst
	return nil
}

// GetInstallation returns an installation by ID.
func (s *Store) GetInstallation(_ context.Context, instID id.ID) (*installation.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.installations[instID.String()]
	if !ok {
		return nil, hooks.ErrInstallationNotFound
	}
	return inst, nil
}

// UpdateInstallation modifies an existing installation.
func (s *Store) UpdateInstallation(_ context.Context, inst *installation.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.installations[inst.ID.String()]; !ok {
		return hooks.ErrInstallationNotFound
	}
	inst.UpdatedAt = time.Now().UTC()
	s.installations[inst.ID.String()] = inst
	return nil
}

// ListInstallations returns installations for a tenant.
func (s *Store) ListInstallations(_ context.Context, tenantID string, opts installation.ListOpts) ([]*installation.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*installation.Installation, 0, len(s.installations))
	for _, inst := range s.installations {
		if inst.TenantID != tenantID {
			continue
		}
		result = append(result, inst)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ListActiveInstallations returns active installations with a webhook URL.
func (s *Store) ListActiveInstallations(_ context.Context, tenantID string) ([]*installation.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*installation.Installation
	for _, inst := range s.installations {
		if inst.TenantID != tenantID || !inst.Receiving() {
			continue
		}
		result = append(result, inst)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SetStatus transitions an installation between active and revoked.
func (s *Store) SetStatus(_ context.Context, instID id.ID, status installation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.installations[instID.String()]
	if !ok {
		return hooks.ErrInstallationNotFound
	}
	inst.Status = status
	inst.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// copyRecord returns a shallow copy of the record.
func copyRecord(rec *delivery.Record) *delivery.Record {
	cp := *rec
	return &cp
}

// CreateDelivery persists a new ledger record.
func (s *Store) CreateDelivery(_ context.Context, rec *delivery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[rec.ID.String()] = copyRecord(rec)
	s.byEventID[rec.EventID.String()] = rec.ID.String()
	return nil
}

// UpdateDelivery writes a record's state back.
func (s *Store) UpdateDelivery(_ context.Context, rec *delivery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[rec.ID.String()]; !ok {
		return hooks.ErrDeliveryNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	s.deliveries[rec.ID.String()] = copyRecord(rec)
	return nil
}

// GetDelivery returns a copy of the record by ID.
func (s *Store) GetDelivery(_ context.Context, recID id.ID) (*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.deliveries[recID.String()]
	if !ok {
		return nil, hooks.ErrDeliveryNotFound
	}
	return copyRecord(rec), nil
}

// GetDeliveryByEventID returns the record carrying the given eventId.
func (s *Store) GetDeliveryByEventID(_ context.Context, eventID id.ID) (*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recID, ok := s.byEventID[eventID.String()]
	if !ok {
		return nil, hooks.ErrDeliveryNotFound
	}
	return copyRecord(s.deliveries[recID]), nil
}

// ListDeliveriesBySubscription returns a subscription's records, newest first.
func (s *Store) ListDeliveriesBySubscription(_ context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Record, 0, len(s.deliveries))
	for _, rec := range s.deliveries {
		if rec.Kind != delivery.KindWebhook || rec.SubscriptionID.String() != subID.String() {
			continue
		}
		if opts.Status != nil && rec.Status != *opts.Status {
			continue
		}
		result = append(result, copyRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ListDeliveriesByTenant returns a tenant's records, newest first.
func (s *Store) ListDeliveriesByTenant(_ context.Context, tenantID string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Record, 0, len(s.deliveries))
	for _, rec := range s.deliveries {
		if rec.TenantID != tenantID {
			continue
		}
		if opts.Status != nil && rec.Status != *opts.Status {
			continue
		}
		result = append(result, copyRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ClaimDue atomically moves due records to sending and returns copies.
// The status flip stands in for FOR UPDATE SKIP LOCKED.
func (s *Store) ClaimDue(_ context.Context, now time.Time, limit int) ([]*delivery.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*delivery.Record, 0, len(s.deliveries))
	for _, rec := range s.deliveries {
		if !rec.Due(now) {
			continue
		}
		candidates = append(candidates, rec)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ti, tj := candidates[i].CreatedAt, candidates[j].CreatedAt
		if candidates[i].NextRetryAt != nil {
			ti = *candidates[i].NextRetryAt
		}
		if candidates[j].NextRetryAt != nil {
			tj = *candidates[j].NextRetryAt
		}
		return ti.Before(tj)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Record, 0, len(candidates))
	for _, rec := range candidates {
		rec.Status = delivery.StatusSending
		result = append(result, copyRecord(rec))
	}
	return result, nil
}

// ClaimDelivery atomically moves a single pending or retrying record to
// sending.
func (s *Store) ClaimDelivery(_ context.Context, recID id.ID) (*delivery.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.deliveries[recID.String()]
	if !ok {
		return nil, false, hooks.ErrDeliveryNotFound
	}
	if rec.Status != delivery.StatusPending && rec.Status != delivery.StatusRetrying {
		return nil, false, nil
	}

	rec.Status = delivery.StatusSending
	return copyRecord(rec), true, nil
}

// CountDeliveriesByStatus returns per-status record counts for a tenant.
func (s *Store) CountDeliveriesByStatus(_ context.Context, tenantID string) (map[delivery.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[delivery.Status]int)
	for _, rec := range s.deliveries {
		if tenantID != "" && rec.TenantID != tenantID {
			continue
		}
		counts[rec.Status]++
	}
	return counts, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
