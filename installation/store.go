package installation

import (
	"context"

	"github.com/storekit/hooks/id"
)

// Store defines the persistence contract for app installations.
type Store interface {
	// CreateInstallation persists a new installation.
	CreateInstallation(ctx context.Context, inst *Installation) error

	// GetInstallation returns an installation by ID.
	GetInstallation(ctx context.Context, instID id.ID) (*Installation, error)

	// UpdateInstallation modifies an existing installation.
	UpdateInstallation(ctx context.Context, inst *Installation) error

	// ListInstallations returns installations for a tenant.
	ListInstallations(ctx context.Context, tenantID string, opts ListOpts) ([]*Installation, error)

	// ListActiveInstallations returns the tenant's active installations
	// that have a webhook URL configured. Publish-time hot path.
	ListActiveInstallations(ctx context.Context, tenantID string) ([]*Installation, error)

	// SetStatus transitions an installation between active and revoked.
	SetStatus(ctx context.Context, instID id.ID, status Status) error
}
