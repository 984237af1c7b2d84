package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/id"
)

// CreateDelivery persists a new delivery record.
func (s *Store) CreateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("hooks/mongo: create delivery: %w", err)
	}

	return nil
}

// UpdateDelivery modifies a delivery record.
func (s *Store) UpdateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hooks/mongo: update delivery: %w", err)
	}

	if res.MatchedCount() == 0 {
		return hooks.ErrDeliveryNotFound
	}

	return nil
}

// GetDelivery returns a delivery record by ID.
func (s *Store) GetDelivery(ctx context.Context, recID id.ID) (*delivery.Record, error) {
	var m deliveryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": recID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hooks.ErrDeliveryNotFound
		}

		return nil, fmt.Errorf("hooks/mongo: get delivery: %w", err)
	}

	return fromDeliveryModel(&m)
}

// GetDeliveryByEventID returns a delivery record by its per-target event ID.
func (s *Store) GetDeliveryByEventID(ctx context.Context, eventID id.ID) (*delivery.Record, error) {
	var m deliveryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"event_id": eventID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hooks.ErrDeliveryNotFound
		}

		return nil, fmt.Errorf("hooks/mongo: get delivery by event: %w", err)
	}

	return fromDeliveryModel(&m)
}

// ListDeliveriesBySubscription returns delivery history for a subscription.
func (s *Store) ListDeliveriesBySubscription(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Record, error) {
	filter := bson.M{"subscription_id": subID.String()}
	return s.listDeliveries(ctx, filter, opts)
}

// ListDeliveriesByTenant returns recent deliveries for a tenant.
func (s *Store) ListDeliveriesByTenant(ctx context.Context, tenantID string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	filter := bson.M{"tenant_id": tenantID}
	return s.listDeliveries(ctx, filter, opts)
}

func (s *Store) listDeliveries(ctx context.Context, filter bson.M, opts delivery.ListOpts) ([]*delivery.Record, error) {
	var models []deliveryModel

	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hooks/mongo: list deliveries: %w", err)
	}

	result := make([]*delivery.Record, 0, len(models))

	for i := range models {
		rec, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, rec)
	}

	return result, nil
}

// ClaimDue claims due delivery records ready for attempt (concurrent-safe).
// Uses FindOneAndUpdate for atomic claim to prevent double-delivery.
func (s *Store) ClaimDue(ctx context.Context, claimTime time.Time, limit int) ([]*delivery.Record, error) {
	result := make([]*delivery.Record, 0, limit)
	col := s.mdb.Collection(colDeliveries)

	for range limit {
		filter := bson.M{
			"status": bson.M{"$in": []string{
				string(delivery.StatusPending),
				string(delivery.StatusRetrying),
			}},
			"$or": []bson.M{
				{"next_retry_at": nil},
				{"next_retry_at": bson.M{"$lte": claimTime}},
			},
		}

		update := bson.M{
			"$set": bson.M{
				"status":     string(delivery.StatusSending),
				"updated_at": now(),
			},
		}

		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_retry_at", Value: 1}})

		var m deliveryModel

		err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if errors.Is(err, mongod.ErrNoDocuments) {
				break
			}

			return nil, fmt.Errorf("hooks/mongo: claim due: %w", err)
		}

		rec, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}

		result = append(result, rec)
	}

	return result, nil
}

// ClaimDelivery atomically claims a single record for an immediate attempt.
func (s *Store) ClaimDelivery(ctx context.Context, recID id.ID) (*delivery.Record, bool, error) {
	col := s.mdb.Collection(colDeliveries)

	filter := bson.M{
		"_id": recID.String(),
		"status": bson.M{"$in": []string{
			string(delivery.StatusPending),
			string(delivery.StatusRetrying),
		}},
	}

	update := bson.M{
		"$set": bson.M{
			"status":     string(delivery.StatusSending),
			"updated_at": now(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m deliveryModel

	err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			// Not claimable: distinguish gone from already claimed.
			if _, getErr := s.GetDelivery(ctx, recID); getErr != nil {
				return nil, false, getErr
			}
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("hooks/mongo: claim delivery: %w", err)
	}

	rec, err := fromDeliveryModel(&m)
	if err != nil {
		return nil, false, err
	}

	return rec, true, nil
}

// CountDeliveriesByStatus returns delivery counts grouped by status.
func (s *Store) CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[delivery.Status]int, error) {
	statuses := []delivery.Status{
		delivery.StatusPending, delivery.StatusSending, delivery.StatusSuccess,
		delivery.StatusFailed, delivery.StatusRetrying, delivery.StatusExhausted,
	}

	counts := make(map[delivery.Status]int, len(statuses))

	for _, st := range statuses {
		filter := bson.M{"status": string(st)}
		if tenantID != "" {
			filter["tenant_id"] = tenantID
		}

		n, err := s.mdb.NewFind((*deliveryModel)(nil)).
			Filter(filter).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("hooks/mongo: count deliveries: %w", err)
		}

		if n > 0 {
			counts[st] = int(n)
		}
	}

	return counts, nil
}
