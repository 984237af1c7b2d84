// Package bunstore implements the hooks store on the Bun ORM against
// PostgreSQL. Table creation happens through Bun's CreateTable plus raw
// index DDL, and due-record claiming uses FOR UPDATE SKIP LOCKED.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	hookstore "github.com/storekit/hooks/store"
	"github.com/storekit/hooks/subscription"
)

// compile-time interface check
var _ hookstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*subscriptionModel)(nil),
		(*installationModel)(nil),
		(*deliveryModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	// Create indexes.
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_hooks_subscriptions_tenant ON hooks_subscriptions (tenant_id)",
		"CREATE INDEX IF NOT EXISTS idx_hooks_subscriptions_resolve ON hooks_subscriptions (tenant_id, event_type) WHERE active AND NOT paused",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_hooks_subscriptions_unique ON hooks_subscriptions (tenant_id, url, event_type)",
		"CREATE INDEX IF NOT EXISTS idx_hooks_installations_tenant ON hooks_installations (tenant_id)",
		"CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_due ON hooks_deliveries (next_retry_at) WHERE status IN ('pending', 'retrying')",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_hooks_deliveries_event ON hooks_deliveries (event_id)",
		"CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_subscription ON hooks_deliveries (subscription_id)",
		"CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_tenant ON hooks_deliveries (tenant_id)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (tenant_id, url, event_type) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrDuplicateSubscription
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", subID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hooks.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	// The unique index is checked up front so the caller gets the
	// sentinel instead of a driver error.
	dupes, err := s.db.NewSelect().
		Model((*subscriptionModel)(nil)).
		Where("tenant_id = ?", sub.TenantID).
		Where("url = ?", sub.URL).
		Where("event_type = ?", string(sub.EventType)).
		Where("id != ?", sub.ID.String()).
		Count(ctx)
	if err != nil {
		return err
	}
	if dupes > 0 {
		return hooks.ErrDuplicateSubscription
	}

	m := toSubscriptionModel(sub)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*subscriptionModel)(nil)).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.db.NewSelect().Model(&models).Where("tenant_id = ?", tenantID)

	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) ResolveSubscriptions(ctx context.Context, tenantID string, eventType event.Type) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("tenant_id = ?", tenantID).
		Where("event_type = ?", string(eventType)).
		Where("active = true").
		Where("paused = false").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) SetPaused(ctx context.Context, subID id.ID, paused bool) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*subscriptionModel)(nil)).
		Set("paused = ?", paused).
		Set("updated_at = ?", now).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Installation Store ====================

func (s *Store) CreateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetInstallation(ctx context.Context, instID id.ID) (*installation.Installation, error) {
	m := new(installationModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", instID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hooks.ErrInstallationNotFound
		}
		return nil, err
	}
	return fromInstallationModel(m)
}

func (s *Store) UpdateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrInstallationNotFound
	}
	return nil
}

func (s *Store) ListInstallations(ctx context.Context, tenantID string, opts installation.ListOpts) ([]*installation.Installation, error) {
	var models []installationModel
	q := s.db.NewSelect().Model(&models).Where("tenant_id = ?", tenantID)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*installation.Installation, len(models))
	for i := range models {
		inst, err := fromInstallationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inst
	}
	return result, nil
}

func (s *Store) ListActiveInstallations(ctx context.Context, tenantID string) ([]*installation.Installation, error) {
	var models []installationModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", string(installation.StatusActive)).
		Where("webhook_url != ''").
		Order("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*installation.Installation, len(models))
	for i := range models {
		inst, err := fromInstallationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inst
	}
	return result, nil
}

func (s *Store) SetStatus(ctx context.Context, instID id.ID, status installation.Status) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*installationModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", now).
		Where("id = ?", instID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hooks.ErrInstallationNotFound
	}
	return nil
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) UpdateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	m.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, recID id.ID) (*delivery.Record, error) {
	m := new(deliveryModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", recID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) GetDeliveryByEventID(ctx context.Context, eventID id.ID) (*delivery.Record, error) {
	m := new(deliveryModel)
	err := s.db.NewSelect().
		Model(m).
		Where("event_id = ?", eventID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) ListDeliveriesBySubscription(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Record, error) {
	var models []deliveryModel
	q := s.db.NewSelect().Model(&models).Where("subscription_id = ?", subID.String())

	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ListDeliveriesByTenant(ctx context.Context, tenantID string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	var models []deliveryModel
	q := s.db.NewSelect().Model(&models).Where("tenant_id = ?", tenantID)

	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*delivery.Record, error) {
	var models []deliveryModel
	err := s.db.NewRaw(`
		UPDATE hooks_deliveries
		SET status = 'sending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM hooks_deliveries
			WHERE status IN ('pending', 'retrying')
			  AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY next_retry_at ASC NULLS FIRST
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, now, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ClaimDelivery(ctx context.Context, recID id.ID) (*delivery.Record, bool, error) {
	var models []deliveryModel
	err := s.db.NewRaw(`
		UPDATE hooks_deliveries
		SET status = 'sending', updated_at = NOW()
		WHERE id = ? AND status IN ('pending', 'retrying')
		RETURNING *
	`, recID.String()).Scan(ctx, &models)
	if err != nil {
		return nil, false, err
	}
	if len(models) == 0 {
		// Not claimable: distinguish gone from already claimed.
		if _, getErr := s.GetDelivery(ctx, recID); getErr != nil {
			return nil, false, getErr
		}
		return nil, false, nil
	}

	rec, err := fromDeliveryModel(&models[0])
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[delivery.Status]int, error) {
	statuses := []delivery.Status{
		delivery.StatusPending, delivery.StatusSending, delivery.StatusSuccess,
		delivery.StatusFailed, delivery.StatusRetrying, delivery.StatusExhausted,
	}

	counts := make(map[delivery.Status]int, len(statuses))
	for _, st := range statuses {
		q := s.db.NewSelect().
			Model((*deliveryModel)(nil)).
			Where("status = ?", string(st))
		if tenantID != "" {
			q = q.Where("tenant_id = ?", tenantID)
		}
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[st] = n
		}
	}
	return counts, nil
}

func fromDeliveryModels(models []deliveryModel) ([]*delivery.Record, error) {
	result := make([]*delivery.Record, len(models))
	for i := range models {
		rec, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}
