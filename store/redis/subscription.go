package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/subscription"
)

// subscriptionModel is the JSON representation stored in Redis.
type subscriptionModel struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Secret     string            `json:"secret"`
	EventType  string            `json:"event_type"`
	APIVersion string            `json:"api_version"`
	Active     bool              `json:"active"`
	Paused     bool              `json:"paused"`
	MaxRetries int               `json:"max_retries"`
	Headers    map[string]string `json:"headers,omitempty"`
	RateLimit  int               `json:"rate_limit"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:         sub.ID.String(),
		TenantID:   sub.TenantID,
		Name:       sub.Name,
		URL:        sub.URL,
		Secret:     sub.Secret,
		EventType:  string(sub.EventType),
		APIVersion: sub.APIVersion,
		Active:     sub.Active,
		Paused:     sub.Paused,
		MaxRetries: sub.MaxRetries,
		Headers:    sub.Headers,
		RateLimit:  sub.RateLimit,
		Metadata:   sub.Metadata,
		CreatedAt:  sub.CreatedAt,
		UpdatedAt:  sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}
	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         subID,
		TenantID:   m.TenantID,
		Name:       m.Name,
		URL:        m.URL,
		Secret:     m.Secret,
		EventType:  event.Type(m.EventType),
		APIVersion: m.APIVersion,
		Active:     m.Active,
		Paused:     m.Paused,
		MaxRetries: m.MaxRetries,
		Headers:    m.Headers,
		RateLimit:  m.RateLimit,
		Metadata:   m.Metadata,
	}, nil
}

// eligible reports whether the subscription should appear in the resolve set.
func (m *subscriptionModel) eligible() bool {
	return m.Active && !m.Paused
}

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	key := entityKey(prefixSubscription, m.ID)

	// Enforce the (tenant, event type, url) uniqueness before writing the entity.
	ok, err := s.rdb.SetNX(ctx, subscriptionUniqueKey(m.TenantID, m.EventType, m.URL), m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("hooks/redis: create subscription unique check: %w", err)
	}
	if !ok {
		return hooks.ErrDuplicateSubscription
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: create subscription: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zSubscriptionTenant+m.TenantID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.eligible() {
		pipe.SAdd(ctx, eligibleSetKey(m.TenantID), m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hooks/redis: create subscription indexes: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel
	if err := s.getEntity(ctx, entityKey(prefixSubscription, subID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hooks.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("hooks/redis: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	key := entityKey(prefixSubscription, sub.ID.String())

	var existing subscriptionModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hooks.ErrSubscriptionNotFound
		}
		return fmt.Errorf("hooks/redis: update subscription get: %w", err)
	}

	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	// Move the unique key when the (event type, url) tuple changed.
	oldUnique := subscriptionUniqueKey(existing.TenantID, existing.EventType, existing.URL)
	newUnique := subscriptionUniqueKey(m.TenantID, m.EventType, m.URL)
	if oldUnique != newUnique {
		ok, err := s.rdb.SetNX(ctx, newUnique, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("hooks/redis: update subscription unique check: %w", err)
		}
		if !ok {
			return hooks.ErrDuplicateSubscription
		}
		s.rdb.Del(ctx, oldUnique)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: update subscription: %w", err)
	}

	if m.eligible() {
		s.rdb.SAdd(ctx, eligibleSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, eligibleSetKey(m.TenantID), m.ID)
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	key := entityKey(prefixSubscription, subID.String())

	var m subscriptionModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hooks.ErrSubscriptionNotFound
		}
		return fmt.Errorf("hooks/redis: delete subscription get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, subscriptionUniqueKey(m.TenantID, m.EventType, m.URL))
	pipe.ZRem(ctx, zSubscriptionTenant+m.TenantID, m.ID)
	pipe.SRem(ctx, eligibleSetKey(m.TenantID), m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hooks/redis: delete subscription indexes: %w", err)
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.ZRange(ctx, zSubscriptionTenant+tenantID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(ids))
	for _, entryID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSubscription, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Active != nil && m.Active != *opts.Active {
			continue
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ResolveSubscriptions(ctx context.Context, tenantID string, eventType event.Type) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.SMembers(ctx, eligibleSetKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: resolve subscriptions: %w", err)
	}

	var result []*subscription.Subscription
	for _, entryID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSubscription, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.EventType != string(eventType) {
			continue
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, nil
}

func (s *Store) SetPaused(ctx context.Context, subID id.ID, paused bool) error {
	key := entityKey(prefixSubscription, subID.String())

	var m subscriptionModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hooks.ErrSubscriptionNotFound
		}
		return fmt.Errorf("hooks/redis: set paused get: %w", err)
	}

	m.Paused = paused
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("hooks/redis: set paused: %w", err)
	}

	if m.eligible() {
		s.rdb.SAdd(ctx, eligibleSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, eligibleSetKey(m.TenantID), m.ID)
	}
	return nil
}
