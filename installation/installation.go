// Package installation models third-party app installations and the
// scope grants that gate which events they receive.
package installation

import (
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
)

// Status is the lifecycle state of an installation.
type Status string

const (
	// StatusActive means the installation receives event deliveries.
	StatusActive Status = "active"

	// StatusRevoked means the app was uninstalled or its access withdrawn.
	// Revoked installations drop out of scope-based fan-out; lifecycle
	// events addressed to the installation itself (the uninstall
	// notification) still reach it.
	StatusRevoked Status = "revoked"
)

// Installation is a third-party app installed on a tenant. Each active
// installation with a webhook URL receives the events its granted scopes
// allow, signed with its own dedicated secret.
type Installation struct {
	entity.Entity

	// ID uniquely identifies the installation (prefix "inst").
	ID id.ID `json:"id"`

	// TenantID is the tenant the app is installed on.
	TenantID string `json:"tenant_id"`

	// AppName is the display name of the installed app.
	AppName string `json:"app_name"`

	// ClientID is the app's public OAuth client identifier. It is echoed
	// back on every delivery so the app can route by installation.
	ClientID string `json:"client_id"`

	// WebhookURL is where event notifications are POSTed. Empty means the
	// app opted out of webhooks and is skipped during fan-out.
	WebhookURL string `json:"webhook_url"`

	// Secret signs deliveries to this installation. Never serialized.
	Secret string `json:"-"`

	// GrantedScopes are the capabilities the tenant approved at install
	// time. Scope-gated events are delivered only when the required scope
	// is present here.
	GrantedScopes []capability.Scope `json:"granted_scopes"`

	// Status is active or revoked.
	Status Status `json:"status"`
}

// Receiving reports whether the installation can receive deliveries at all.
func (inst *Installation) Receiving() bool {
	return inst.Status == StatusActive && inst.WebhookURL != ""
}

// ListOpts controls installation listing.
type ListOpts struct {
	Offset int
	Limit  int
}

// Input carries the fields for registering an installation.
type Input struct {
	TenantID      string
	AppName       string
	ClientID      string
	WebhookURL    string
	GrantedScopes []capability.Scope
}
