package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/subscription"
)

// --- Subscription models ---

type subscriptionModel struct {
	grove.BaseModel `grove:"table:hooks_subscriptions"`

	ID         string            `grove:"id,pk"        bson:"_id"`
	TenantID   string            `grove:"tenant_id"    bson:"tenant_id"`
	Name       string            `grove:"name"         bson:"name"`
	URL        string            `grove:"url"          bson:"url"`
	Secret     string            `grove:"secret"       bson:"secret"`
	EventType  string            `grove:"event_type"   bson:"event_type"`
	APIVersion string            `grove:"api_version"  bson:"api_version"`
	Active     bool              `grove:"active"       bson:"active"`
	Paused     bool              `grove:"paused"       bson:"paused"`
	MaxRetries int               `grove:"max_retries"  bson:"max_retries"`
	Headers    map[string]string `grove:"headers"      bson:"headers,omitempty"`
	RateLimit  int               `grove:"rate_limit"   bson:"rate_limit"`
	Metadata   map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt  time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"   bson:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:         sub.ID.String(),
		TenantID:   sub.TenantID,
		Name:       sub.Name,
		URL:        sub.URL,
		Secret:     sub.Secret,
		EventType:  string(sub.EventType),
		APIVersion: sub.APIVersion,
		Active:     sub.Active,
		Paused:     sub.Paused,
		MaxRetries: sub.MaxRetries,
		Headers:    sub.Headers,
		RateLimit:  sub.RateLimit,
		Metadata:   sub.Metadata,
		CreatedAt:  sub.CreatedAt,
		UpdatedAt:  sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}
	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         subID,
		TenantID:   m.TenantID,
		Name:       m.Name,
		URL:        m.URL,
		Secret:     m.Secret,
		EventType:  event.Type(m.EventType),
		APIVersion: m.APIVersion,
		Active:     m.Active,
		Paused:     m.Paused,
		MaxRetries: m.MaxRetries,
		Headers:    m.Headers,
		RateLimit:  m.RateLimit,
		Metadata:   m.Metadata,
	}, nil
}

// --- Installation models ---

type installationModel struct {
	grove.BaseModel `grove:"table:hooks_installations"`

	ID            string    `grove:"id,pk"           bson:"_id"`
	TenantID      string    `grove:"tenant_id"       bson:"tenant_id"`
	AppName       string    `grove:"app_name"        bson:"app_name"`
	ClientID      string    `grove:"client_id"       bson:"client_id"`
	WebhookURL    string    `grove:"webhook_url"     bson:"webhook_url"`
	Secret        string    `grove:"secret"          bson:"secret"`
	GrantedScopes []string  `grove:"granted_scopes"  bson:"granted_scopes,omitempty"`
	Status        string    `grove:"status"          bson:"status"`
	CreatedAt     time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"      bson:"updated_at"`
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

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:hooks_deliveries"`

	ID             string     `grove:"id,pk"            bson:"_id"`
	EventID        string     `grove:"event_id"         bson:"event_id"`
	TenantID       string     `grove:"tenant_id"        bson:"tenant_id"`
	Kind           string     `grove:"kind"             bson:"kind"`
	SubscriptionID string     `grove:"subscription_id"  bson:"subscription_id,omitempty"`
	InstallationID string     `grove:"installation_id"  bson:"installation_id,omitempty"`
	EventType      string     `grove:"event_type"       bson:"event_type"`
	URL            string     `grove:"url"              bson:"url"`
	Payload        []byte     `grove:"payload"          bson:"payload,omitempty"`
	Status         string     `grove:"status"           bson:"status"`
	AttemptNumber  int        `grove:"attempt_number"   bson:"attempt_number"`
	MaxAttempts    int        `grove:"max_attempts"     bson:"max_attempts"`
	NextRetryAt    *time.Time `grove:"next_retry_at"    bson:"next_retry_at,omitempty"`
	TriggeredAt    time.Time  `grove:"triggered_at"     bson:"triggered_at"`
	DeliveredAt    *time.Time `grove:"delivered_at"     bson:"delivered_at,omitempty"`
	ResponseStatus int        `grove:"response_status"  bson:"response_status"`
	ResponseBody   string     `grove:"response_body"    bson:"response_body"`
	ErrorMessage   string     `grove:"error_message"    bson:"error_message"`
	DurationMs     int        `grove:"duration_ms"      bson:"duration_ms"`
	CreatedAt      time.Time  `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"       bson:"updated_at"`
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
