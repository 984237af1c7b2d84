package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/internal/entity"
)

// installationModel is the JSON representation stored in Redis.
type installationModel struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	AppName       string    `json:"app_name"`
	ClientID      string    `json:"client_id"`
	WebhookURL    string    `json:"webhook_url"`
	Secret        string    `json:"secret"`
	GrantedScopes []string  `json:"granted_scopes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toInstallationModel(inst *installation.Installation) *installationModel {
	scopes := make([]string, len(inst.GrantedScopes))
	for i, sc := range inst.GrantedScopes {
		scopes[i] = string(sc)
	}
	return &installationModel{
		ID:            inst.ID.String(),
		TenantID:      inst.TenantID,
		AppName:       inst.AppName,
		ClientID:      inst.ClientID,
		WebhookURL:    inst.WebhookURL,
		Secret:        inst.Secret,
		GrantedScopes: scopes,
		Status:        string(inst.Status),
		CreatedAt:     inst.CreatedAt,
		UpdatedAt:     inst.UpdatedAt,
	}
}

func fromInstallationModel(m *installationModel) (*installation.Installation, error) {
	instID, err := id.ParseInstallationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse installation ID %q: %w", m.ID, err)
	}
	scopes := make([]capability.Scope, len(m.GrantedScopes))
	for i, sc := range m.GrantedScopes {
		scopes[i] = capability.Scope(sc)
	}
	return &installation.Installation{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            instID,
		TenantID:      m.TenantID,
		AppName:       m.AppName,
		ClientID:      m.ClientID,
		WebhookURL:    m.WebhookURL,
		Secret:        m.Secret,
		GrantedScopes: scopes,
		Status:        installation.Status(m.Status),
	}, nil
}

// receiving reports whether the installation belongs in the active set.
func (m *installationModel) receiving() bool {
	return m.Status == string(installation.StatusActive) && m.WebhookURL != ""
}

func (s *Store) CreateInstallation(ctx context.Context, inst *installation.Installation) error {
	m := toInstallationModel(inst)
	key := entityKey(prefixInstallation, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: create installation: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zInstallationTenant+m.TenantID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.receiving() {
		pipe.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hooks/redis: create installation indexes: %w", err)
	}
	return nil
}

func (s *Store) GetInstallation(ctx context.Context, instID id.ID) (*installation.Installation, error) {
	var m installationModel
	if err := s.getEntity(ctx, entityKey(prefixInstallation, instID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hooks.ErrInstallationNotFound
		}
		return nil, fmt.Errorf("hooks/redis: get installation: %w", err)
	}
	return fromInstallationModel(&m)
}

func (s *Store) UpdateInstallation(ctx context.Context, inst *installation.Installation) error {
	key := entityKey(prefixInstallation, inst.ID.String())

	var existing installationModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hooks.ErrInstallationNotFound
		}
		return fmt.Errorf("hooks/redis: update installation get: %w", err)
	}

	m := toInstallationModel(inst)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hooks/redis: update installation: %w", err)
	}

	if m.receiving() {
		s.rdb.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, activeSetKey(m.TenantID), m.ID)
	}
	return nil
}

func (s *Store) ListInstallations(ctx context.Context, tenantID string, opts installation.ListOpts) ([]*installation.Installation, error) {
	ids, err := s.rdb.ZRange(ctx, zInstallationTenant+tenantID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: list installations: %w", err)
	}

	result := make([]*installation.Installation, 0, len(ids))
	for _, entryID := range ids {
		var m installationModel
		if err := s.getEntity(ctx, entityKey(prefixInstallation, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		inst, err := fromInstallationModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListActiveInstallations(ctx context.Context, tenantID string) ([]*installation.Installation, error) {
	ids, err := s.rdb.SMembers(ctx, activeSetKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hooks/redis: list active installations: %w", err)
	}

	var result []*installation.Installation
	for _, entryID := range ids {
		var m installationModel
		if err := s.getEntity(ctx, entityKey(prefixInstallation, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		inst, err := fromInstallationModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

func (s *Store) SetStatus(ctx context.Context, instID id.ID, status installation.Status) error {
	key := entityKey(prefixInstallation, instID.String())

	var m installationModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hooks.ErrInstallationNotFound
		}
		return fmt.Errorf("hooks/redis: set status get: %w", err)
	}

	m.Status = string(status)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("hooks/redis: set status: %w", err)
	}

	if m.receiving() {
		s.rdb.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, activeSetKey(m.TenantID), m.ID)
	}
	return nil
}
