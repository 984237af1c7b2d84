package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/subscription"
)

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return hooks.ErrDuplicateSubscription
		}
		return fmt.Errorf("hooks/mongo: create subscription: %w", err)
	}

	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hooks.ErrSubscriptionNotFound
		}

		return nil, fmt.Errorf("hooks/mongo: get subscription: %w", err)
	}

	return fromSubscriptionModel(&m)
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return hooks.ErrDuplicateSubscription
		}
		return fmt.Errorf("hooks/mongo: update subscription: %w", err)
	}

	if res.MatchedCount() == 0 {
		return hooks.ErrSubscriptionNotFound
	}

	return nil
}

// DeleteSubscription removes a subscription.
func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.mdb.NewDelete((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hooks/mongo: delete subscription: %w", err)
	}

	if res.DeletedCount() == 0 {
		return hooks.ErrSubscriptionNotFound
	}

	return nil
}

// ListSubscriptions returns subscriptions for a tenant, optionally filtered.
func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{"tenant_id": tenantID}
	if opts.Active != nil {
		filter["active"] = *opts.Active
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hooks/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(models))

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, sub)
	}

	return result, nil
}

// ResolveSubscriptions returns the eligible subscriptions for an event.
func (s *Store) ResolveSubscriptions(ctx context.Context, tenantID string, eventType event.Type) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id":  tenantID,
			"event_type": string(eventType),
			"active":     true,
			"paused":     false,
		}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("hooks/mongo: resolve subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(models))

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, sub)
	}

	return result, nil
}

// SetPaused toggles the paused flag on a subscription.
func (s *Store) SetPaused(ctx context.Context, subID id.ID, paused bool) error {
	col := s.mdb.Collection(colSubscriptions)

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": subID.String()},
		bson.M{"$set": bson.M{
			"paused":     paused,
			"updated_at": now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("hooks/mongo: set paused: %w", err)
	}

	if res.MatchedCount == 0 {
		return hooks.ErrSubscriptionNotFound
	}

	return nil
}
