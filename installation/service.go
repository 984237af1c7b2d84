package installation

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/signature"
)

// Service provides installation management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new installation service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Register records a new app installation on a tenant. A dedicated signing
// secret is generated; the caller relays it to the app out of band.
func (svc *Service) Register(ctx context.Context, in Input) (*Installation, error) {
	if in.TenantID == "" {
		return nil, &ValidationError{Field: "tenant_id", Message: "required"}
	}
	if in.AppName == "" {
		return nil, &ValidationError{Field: "app_name", Message: "required"}
	}
	if in.ClientID == "" {
		return nil, &ValidationError{Field: "client_id", Message: "required"}
	}
	if in.WebhookURL != "" {
		u, err := url.ParseRequestURI(in.WebhookURL)
		if err != nil {
			return nil, &ValidationError{Field: "webhook_url", Message: "invalid URL"}
		}
		if u.Scheme != "https" {
			return nil, &ValidationError{Field: "webhook_url", Message: "must use https"}
		}
	}

	inst := &Installation{
		Entity:        entity.New(),
		ID:            id.NewInstallationID(),
		TenantID:      in.TenantID,
		AppName:       in.AppName,
		ClientID:      in.ClientID,
		WebhookURL:    in.WebhookURL,
		Secret:        signature.GenerateSecret(),
		GrantedScopes: in.GrantedScopes,
		Status:        StatusActive,
	}

	if err := svc.store.CreateInstallation(ctx, inst); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "installation registered",
		slog.String("installation_id", inst.ID.String()),
		slog.String("tenant_id", inst.TenantID),
		slog.String("app_name", inst.AppName))

	return inst, nil
}

// Get returns an installation by ID.
func (svc *Service) Get(ctx context.Context, instID id.ID) (*Installation, error) {
	return svc.store.GetInstallation(ctx, instID)
}

// List returns installations for a tenant.
func (svc *Service) List(ctx context.Context, tenantID string, opts ListOpts) ([]*Installation, error) {
	return svc.store.ListInstallations(ctx, tenantID, opts)
}

// Revoke withdraws an installation's access. Revoked installations stop
// receiving deliveries immediately.
func (svc *Service) Revoke(ctx context.Context, instID id.ID) error {
	return svc.store.SetStatus(ctx, instID, StatusRevoked)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "installation validation: " + e.Field + ": " + e.Message
}
