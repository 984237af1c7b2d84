package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
)

// CreateInstallation persists a new installation.
func (s *Store) CreateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("hooks/mongo: create installation: %w", err)
	}

	return nil
}

// GetInstallation returns an installation by ID.
func (s *Store) GetInstallation(ctx context.Context, instID id.ID) (*installation.Installation, error) {
	var m installationModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": instID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hooks.ErrInstallationNotFound
		}

		return nil, fmt.Errorf("hooks/mongo: get installation: %w", err)
	}

	return fromInstallationModel(&m)
}

// UpdateInstallation modifies an existing installation.
func (s *Store) UpdateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hooks/mongo: update installation: %w", err)
	}

	if res.MatchedCount() == 0 {
		return hooks.ErrInstallationNotFound
	}

	return nil
}

// ListInstallations returns installations for a tenant.
func (s *Store) ListInstallations(ctx context.Context, tenantID string, opts installation.ListOpts) ([]*installation.Installation, error) {
	var models []installationModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID}).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hooks/mongo: list installations: %w", err)
	}

	result := make([]*installation.Installation, 0, len(models))

	for i := range models {
		inst, err := fromInstallationModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, inst)
	}

	return result, nil
}

// ListActiveInstallations returns active installations with a webhook URL.
func (s *Store) ListActiveInstallations(ctx context.Context, tenantID string) ([]*installation.Installation, error) {
	var models []installationModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id":   tenantID,
			"status":      string(installation.StatusActive),
			"webhook_url": bson.M{"$ne": ""},
		}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("hooks/mongo: list active installations: %w", err)
	}

	result := make([]*installation.Installation, 0, len(models))

	for i := range models {
		inst, err := fromInstallationModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, inst)
	}

	return result, nil
}

// SetStatus updates the lifecycle status of an installation.
func (s *Store) SetStatus(ctx context.Context, instID id.ID, status installation.Status) error {
	col := s.mdb.Collection(colInstallations)

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": instID.String()},
		bson.M{"$set": bson.M{
			"status":     string(status),
			"updated_at": now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("hooks/mongo: set status: %w", err)
	}

	if res.MatchedCount == 0 {
		return hooks.ErrInstallationNotFound
	}

	return nil
}
