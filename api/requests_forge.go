package api

import (
	"github.com/storekit/hooks/id"
)

// ---------------------------------------------------------------------------
// Subscription requests
// ---------------------------------------------------------------------------

// CreateSubscriptionForgeRequest binds the body for POST /subscriptions.
type CreateSubscriptionForgeRequest struct {
	TenantID   string            `description:"Tenant identifier"                  json:"tenant_id"`
	Name       string            `description:"Subscription display name"          json:"name,omitempty"`
	URL        string            `description:"Webhook delivery URL (https)"       json:"url"`
	Secret     string            `description:"Signing secret (generated if empty)" json:"secret,omitempty"`
	EventType  string            `description:"Subscribed event type"              json:"event_type"`
	APIVersion string            `description:"Payload API version"                json:"api_version,omitempty"`
	MaxRetries int               `description:"Maximum delivery attempts"          json:"max_retries,omitempty"`
	Headers    map[string]string `description:"Custom HTTP headers"                json:"headers,omitempty"`
	RateLimit  int               `description:"Requests per second limit"          json:"rate_limit,omitempty"`
	Metadata   map[string]string `description:"Arbitrary key-value metadata"       json:"metadata,omitempty"`
}

// ListSubscriptionsForgeRequest binds query parameters for GET /subscriptions.
type ListSubscriptionsForgeRequest struct {
	TenantID string `description:"Filter by tenant"       query:"tenant_id"`
	Active   string `description:"Filter by active state" query:"active"`
	Offset   int    `description:"Pagination offset"      query:"offset"`
	Limit    int    `description:"Page size (default 50)" query:"limit"`
}

// GetSubscriptionForgeRequest binds the path for GET /subscriptions/:subscriptionId.
type GetSubscriptionForgeRequest struct {
	SubscriptionID string `description:"Subscription identifier" path:"subscriptionId"`
}

// UpdateSubscriptionForgeRequest binds path + body for PUT /subscriptions/:subscriptionId.
type UpdateSubscriptionForgeRequest struct {
	SubscriptionID string            `description:"Subscription identifier"      path:"subscriptionId"`
	Name           string            `description:"Subscription display name"    json:"name,omitempty"`
	URL            string            `description:"Webhook delivery URL (https)" json:"url,omitempty"`
	EventType      string            `description:"Subscribed event type"        json:"event_type,omitempty"`
	APIVersion     string            `description:"Payload API version"          json:"api_version,omitempty"`
	MaxRetries     int               `description:"Maximum delivery attempts"    json:"max_retries,omitempty"`
	Headers        map[string]string `description:"Custom HTTP headers"          json:"headers,omitempty"`
	RateLimit      int               `description:"Requests per second limit"    json:"rate_limit,omitempty"`
	Metadata       map[string]string `description:"Arbitrary key-value metadata" json:"metadata,omitempty"`
}

// DeleteSubscriptionForgeRequest binds the path for DELETE /subscriptions/:subscriptionId.
type DeleteSubscriptionForgeRequest struct {
	SubscriptionID string `description:"Subscription identifier" path:"subscriptionId"`
}

// SubscriptionActionForgeRequest binds the path for pause/resume/rotate-secret/test.
type SubscriptionActionForgeRequest struct {
	SubscriptionID string `description:"Subscription identifier" path:"subscriptionId"`
}

// ---------------------------------------------------------------------------
// Installation requests
// ---------------------------------------------------------------------------

// RegisterInstallationForgeRequest binds the body for POST /installations.
type RegisterInstallationForgeRequest struct {
	TenantID      string   `description:"Tenant identifier"            json:"tenant_id"`
	AppName       string   `description:"Installed app name"           json:"app_name"`
	ClientID      string   `description:"OAuth client identifier"      json:"client_id"`
	WebhookURL    string   `description:"App webhook URL"              json:"webhook_url,omitempty"`
	GrantedScopes []string `description:"Granted capability scopes"    json:"granted_scopes,omitempty"`
}

// ListInstallationsForgeRequest binds query parameters for GET /installations.
type ListInstallationsForgeRequest struct {
	TenantID string `description:"Filter by tenant"       query:"tenant_id"`
	Offset   int    `description:"Pagination offset"      query:"offset"`
	Limit    int    `description:"Page size (default 50)" query:"limit"`
}

// GetInstallationForgeRequest binds the path for GET /installations/:installationId.
type GetInstallationForgeRequest struct {
	InstallationID string `description:"Installation identifier" path:"installationId"`
}

// RevokeInstallationForgeRequest binds the path for DELETE /installations/:installationId.
type RevokeInstallationForgeRequest struct {
	InstallationID string `description:"Installation identifier" path:"installationId"`
}

// ---------------------------------------------------------------------------
// Event requests
// ---------------------------------------------------------------------------

// PublishEventForgeRequest binds the body for POST /events.
type PublishEventForgeRequest struct {
	Type       string         `description:"Event type name"     json:"type"`
	TenantID   string         `description:"Tenant identifier"   json:"tenant_id"`
	TenantSlug string         `description:"Tenant slug"         json:"tenant_slug,omitempty"`
	Data       map[string]any `description:"Event payload"       json:"data,omitempty"`
}

// ListEventTypesForgeRequest is empty -- GET /event-types has no parameters.
type ListEventTypesForgeRequest struct{}

// ---------------------------------------------------------------------------
// Delivery requests
// ---------------------------------------------------------------------------

// ListSubscriptionDeliveriesForgeRequest binds path + query for
// GET /subscriptions/:subscriptionId/deliveries.
type ListSubscriptionDeliveriesForgeRequest struct {
	SubscriptionID string `description:"Subscription identifier" path:"subscriptionId"`
	Status         string `description:"Filter by status"        query:"status"`
	Offset         int    `description:"Pagination offset"       query:"offset"`
	Limit          int    `description:"Page size (default 50)"  query:"limit"`
}

// ListDeliveriesForgeRequest binds query parameters for GET /deliveries.
type ListDeliveriesForgeRequest struct {
	TenantID string `description:"Tenant identifier"      query:"tenant_id"`
	Status   string `description:"Filter by status"       query:"status"`
	Offset   int    `description:"Pagination offset"      query:"offset"`
	Limit    int    `description:"Page size (default 50)" query:"limit"`
}

// GetDeliveryForgeRequest binds the path for GET /deliveries/:deliveryId.
type GetDeliveryForgeRequest struct {
	DeliveryID string `description:"Delivery identifier" path:"deliveryId"`
}

// GetDeliveryByEventForgeRequest binds the path for GET /deliveries/by-event/:eventId.
type GetDeliveryByEventForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// RetryDeliveryForgeRequest binds the path for POST /deliveries/:deliveryId/retry.
type RetryDeliveryForgeRequest struct {
	DeliveryID string `description:"Delivery identifier" path:"deliveryId"`
}

// ---------------------------------------------------------------------------
// Stats requests
// ---------------------------------------------------------------------------

// StatsForgeRequest binds query parameters for GET /stats.
type StatsForgeRequest struct {
	TenantID string `description:"Filter by tenant" query:"tenant_id"`
}

// StatsForgeResponse is the response for GET /stats.
type StatsForgeResponse struct {
	Counts map[string]int `json:"counts"`
}

// SecretForgeResponse is the response for POST /subscriptions/:subscriptionId/rotate-secret.
type SecretForgeResponse struct {
	Secret string `json:"secret"`
}

// EventTypeForgeResponse describes one entry in GET /event-types.
type EventTypeForgeResponse struct {
	Name          string `json:"name"`
	WireName      string `json:"wire_name"`
	RequiredScope string `json:"required_scope,omitempty"`
	Lifecycle     bool   `json:"lifecycle"`
}

// ---------------------------------------------------------------------------
// Helper -- compile-time check that id.ID is used (keep import alive).
// ---------------------------------------------------------------------------

var _ = id.Nil
