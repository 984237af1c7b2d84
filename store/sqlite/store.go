// Package sqlite implements the hooks store on SQLite via the Grove ORM.
// SQLite serializes writes (WAL mode), so due-record claiming is a plain
// UPDATE ... RETURNING without row locking hints.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("hooks/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hooks/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id, url, event_type) DO NOTHING").
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hooks.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	// The unique index is checked up front so the caller gets the
	// sentinel instead of a driver error.
	dupes, err := s.sdb.NewSelect((*subscriptionModel)(nil)).
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
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
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
	res, err := s.sdb.NewDelete((*subscriptionModel)(nil)).
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
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

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
	if err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("event_type = ?", string(eventType)).
		Where("active = 1").
		Where("paused = 0").
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
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("paused = ?", paused).
		Set("updated_at = ?", now()).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetInstallation(ctx context.Context, instID id.ID) (*installation.Installation, error) {
	m := new(installationModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", instID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hooks.ErrInstallationNotFound
		}
		return nil, err
	}
	return fromInstallationModel(m)
}

func (s *Store) UpdateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
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
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

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
	if err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", string(installation.StatusActive)).
		Where("webhook_url != ''").
		OrderExpr("created_at ASC").
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
	res, err := s.sdb.NewUpdate((*installationModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", now()).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) UpdateDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)
	m.UpdatedAt = now()
	_, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, recID id.ID) (*delivery.Record, error) {
	m := new(deliveryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", recID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) GetDeliveryByEventID(ctx context.Context, eventID id.ID) (*delivery.Record, error) {
	m := new(deliveryModel)
	err := s.sdb.NewSelect(m).
		Where("event_id = ?", eventID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) ListDeliveriesBySubscription(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Record, error) {
	var models []deliveryModel
	q := s.sdb.NewSelect(&models).Where("subscription_id = ?", subID.String())

	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ListDeliveriesByTenant(ctx context.Context, tenantID string, opts delivery.ListOpts) ([]*delivery.Record, error) {
	var models []deliveryModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ClaimDue(ctx context.Context, claimTime time.Time, limit int) ([]*delivery.Record, error) {
	// SQLite serializes writes (WAL mode), so no FOR UPDATE SKIP LOCKED needed.
	var models []deliveryModel
	err := s.sdb.NewRaw(`
		UPDATE hooks_deliveries
		SET status = 'sending', updated_at = datetime('now')
		WHERE id IN (
			SELECT id FROM hooks_deliveries
			WHERE status IN ('pending', 'retrying')
			  AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY next_retry_at ASC
			LIMIT ?
		)
		RETURNING *
	`, claimTime, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return fromDeliveryModels(models)
}

func (s *Store) ClaimDelivery(ctx context.Context, recID id.ID) (*delivery.Record, bool, error) {
	var models []deliveryModel
	err := s.sdb.NewRaw(`
		UPDATE hooks_deliveries
		SET status = 'sending', updated_at = datetime('now')
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
		q := s.sdb.NewSelect((*deliveryModel)(nil)).
			Where("status = ?", string(st))
		if tenantID != "" {
			q = q.Where("tenant_id = ?", tenantID)
		}
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[st] = int(n)
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
