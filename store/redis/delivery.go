package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	TenantID       string     `json:"tenant_id"`
	Kind           string     `json:"kind"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	InstallationID string     `json:"installation_id,omitempty"`
	EventType      string     `json:"event_type"`
	URL            string     `json:"url"`
	Payload        []byte     `json:"payload,omitempty"`
	Status         string     `json:"status"`
	AttemptNumber  int        `json:"attempt_number"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ResponseStatus int        `json:"response_status"`
	ResponseBody   string     `json:"response_body"`
	ErrorMessage   string     `json:"error_message"`
	DurationMs     int        `json:"duration_ms"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toDeliveryModel(rec *delivery.Record) *deliveryModel {
	m := &deliveryModel{
		ID:             rec.ID.String(),
		EventID:        rec.EventID.String(),
		TenantID:       rec.TenantID,
		Kind:           string(rec.Kind),
		EventType:      string(rec.EventType),
		URL:            rec.URL,
		Payload:        rec.Payload,
		Status:         string(rec.Status),
		AttemptNumber:  rec.AttemptNumber,
		MaxAttempts:    rec.MaxAttempts,
		NextRetryAt:    rec.NextRetryAt,
		TriggeredAt:    rec.TriggeredAt,
		DeliveredAt:    rec.DeliveredAt,
		ResponseStatus: rec.ResponseStatus,
		ResponseBody:   rec.ResponseBody,
		ErrorMessage:   rec.ErrorMessage,
		DurationMs:     rec.DurationMs,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if !rec.SubscriptionID.IsNil() {
		m.SubscriptionID = rec.SubscriptionID.String()
	}
	if !rec.InstallationID.IsNil() {
		m.InstallationID = rec.InstallationID.String()
	}
	return m
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Record, error) {
	recID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	rec := &delivery.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             recID,
		EventID:        evtID,
		TenantID:       m.TenantID,
		Kind:           delivery.Kind(m.Kind),
		EventType:      event.Type(m.EventType),
		URL:            m.URL,
		Payload:        m.Payload,
		Status:         delivery.Status(m.Status),
		AttemptNumber:  m.AttemptNumber,
		MaxAttempts:    m.MaxAttempts,
		NextRetryAt:    m.NextRetryAt,
		TriggeredAt:    m.TriggeredAt,
		DeliveredAt:    m.DeliveredAt,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		ErrorMessage:   m.ErrorMessage,
		DurationMs:     m.DurationMs,
	}
	if m.SubscriptionID != "" {
		subID, err := id.ParseSubscriptionID(m.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
		}
		rec.SubscriptionID = subID
	}
	if m.InstallationID != "" {
		instID, err := id.ParseInstallationID(m.InstallationID)
		if err != nil {
			return nil, fmt.Errorf("parse installation ID %q: %w", m.InstallationID, err)
		}
		rec.InstallationID = instID
	}
	return rec, nil
}

// dueScore is the position of a record in the due sorted set.
func (m *deliveryModel) dueScore() float64 {
	if m.NextRetryAt != nil {
		return scoreFromTime(*m.NextRetryAt)
	}
	return scoreFromTime(m.TriggeredAt)
}

// claimDueScript atomically claims due delivery IDs from the sorted set.
// KEYS[1] = hooks:z:del:due
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var claimDueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) CreateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	key := entityKey(prefixDelivery, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: create delivery: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, uniqueDeliveryEvent+m.EventID, m.ID, 0)
	pipe.ZAdd(ctx, zDeliveryAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	pipe.ZAdd(ctx, zDeliveryTenant+m.TenantID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.SubscriptionID != "" {
		pipe.ZAdd(ctx, zDeliverySub+m.SubscriptionID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}
	if m.Status == string(delivery.StatusPending) || m.Status == string(delivery.StatusRetrying) {
		pipe.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: m.dueScore(), Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hooks/redis: create delivery indexes: %w", err)
	}
	return nil
}

func (s *Store) UpdateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	m.UpdatedAt = now()
	key := entityKey(prefixDelivery, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: update delivery: %w", err)
	}

	// Keep the due set in step with the record status.
	if m.Status == string(delivery.StatusPending) || m.Status == string(delivery.StatusRetrying) {
		s.rdb.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: m.dueScore(), Member: m.ID})
	} else {
		s.rdb.ZRem(ctx, zDeliveryDue, m.ID)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, recID id.ID) (*delivery.Record, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, recID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("hooks/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

func (s *Store) GetDeliveryByEventID(ctx context.Context, eventID id.ID) (*delivery.Record, error) {
	recID, err := s.rdb.Get(ctx, uniqueDeliveryEvent+eventID.String()).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("hooks/redis: get delivery by event: %w", err)
	}

	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, recID), &m); err != nil {
		if isNotFound(err) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(&m)
}

func (s *Store) ListDeliveriesBySubscription(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Record, error) {
	return s.listDeliveries(ctx, zDeliverySub+subID.String(), opts)
}

func (s *Store) ListDeliveriesByTenant(ctx context.Context, tenantID string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	return s.listDeliveries(ctx, zDeliveryTenant+tenantID, opts)
}

func (s *Store) listDeliveries(ctx context.Context, indexKey string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: list deliveries: %w", err)
	}

	result := make([]*delivery.Record, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != nil && delivery.Status(m.Status) != *opts.Status {
			continue
		}
		rec, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ClaimDue(ctx context.Context, claimTime time.Time, limit int) ([]*delivery.Record, error) {
	// Atomically claim due delivery IDs using a Lua script.
	score := fmt.Sprintf("%f", scoreFromTime(claimTime))
	ids, err := claimDueScript.Run(ctx, s.rdb, []string{zDeliveryDue}, score, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("hooks/redis: claim due script: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Fetch and mark each claimed delivery as sending.
	records := make([]*delivery.Record, 0, len(ids))
	for _, entryID := range ids {
		key := entityKey(prefixDelivery, entryID)
		var m deliveryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("hooks/redis: claim due get: %w", err)
		}
		if m.Status != string(delivery.StatusPending) && m.Status != string(delivery.StatusRetrying) {
			continue
		}

		m.Status = string(delivery.StatusSending)
		m.UpdatedAt = now()
		if err := s.setEntity(ctx, key, &m); err != nil {
			return nil, fmt.Errorf("hooks/redis: claim due update: %w", err)
		}

		rec, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// ClaimDelivery CASes a claimable record to sending. Pending and retrying
// records are always members of the due set, so the ZREM doubles as the
// claim token: exactly one claimant (manual dispatch or the sweep's
// script) wins the removal, and only the winner marks the record sending.
func (s *Store) ClaimDelivery(ctx context.Context, recID id.ID) (*delivery.Record, bool, error) {
	key := entityKey(prefixDelivery, recID.String())

	removed, err := s.rdb.ZRem(ctx, zDeliveryDue, recID.String()).Result()
	if err != nil {
		return nil, false, fmt.Errorf("hooks/redis: claim delivery token: %w", err)
	}
	if removed == 0 {
		// Already claimed, terminal, or missing.
		var m deliveryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				return nil, false, hooks.ErrDeliveryNotFound
			}
			return nil, false, fmt.Errorf("hooks/redis: claim delivery get: %w", err)
		}
		return nil, false, nil
	}

	var m deliveryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return nil, false, hooks.ErrDeliveryNotFound
		}
		return nil, false, fmt.Errorf("hooks/redis: claim delivery get: %w", err)
	}

	m.Status = string(delivery.StatusSending)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, &m); err != nil {
		return nil, false, fmt.Errorf("hooks/redis: claim delivery update: %w", err)
	}

	rec, err := fromDeliveryModel(&m)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[delivery.Status]int, error) {
	indexKey := zDeliveryAll
	if tenantID != "" {
		indexKey = zDeliveryTenant + tenantID
	}

	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: count deliveries: %w", err)
	}

	counts := make(map[delivery.Status]int)
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		counts[delivery.Status(m.Status)]++
	}
	return counts, nil
}
