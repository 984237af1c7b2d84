package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

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
	bun.BaseModel `bun:"table:hooks_subscriptions"`

	ID         string            `bun:"id,pk"`
	TenantID   string            `bun:"tenant_id,notnull"`
	Name       string            `bun:"name"`
	URL        string            `bun:"url,notnull"`
	Secret     string            `bun:"secret,notnull"`
	EventType  string            `bun:"event_type,notnull"`
	APIVersion string            `bun:"api_version"`
	Active     bool              `bun:"active"`
	Paused     bool              `bun:"paused"`
	MaxRetries int               `bun:"max_retries"`
	Headers    map[string]string `bun:"headers,type:jsonb"`
	RateLimit  int               `bun:"rate_limit"`
	Metadata   map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
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
	bun.BaseModel `bun:"table:hooks_installations"`

	ID            string    `bun:"id,pk"`
	TenantID      string    `bun:"tenant_id,notnull"`
	AppName       string    `bun:"app_name,notnull"`
	ClientID      string    `bun:"client_id,notnull"`
	WebhookURL    string    `bun:"webhook_url"`
	Secret        string    `bun:"secret"`
	GrantedScopes []string  `bun:"granted_scopes,array"`
	Status        string    `bun:"status,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
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
	bun.BaseModel `bun:"table:hooks_deliveries"`

	ID             string     `bun:"id,pk"`
	EventID        string     `bun:"event_id,notnull"`
	TenantID       string     `bun:"tenant_id,notnull"`
	Kind           string     `bun:"kind,notnull"`
	SubscriptionID string     `bun:"subscription_id"`
	InstallationID string     `bun:"installation_id"`
	EventType      string     `bun:"event_type,notnull"`
	URL            string     `bun:"url,notnull"`
	Payload        []byte     `bun:"payload,type:jsonb"`
	Status         string     `bun:"status,notnull"`
	AttemptNumber  int        `bun:"attempt_number"`
	MaxAttempts    int        `bun:"max_attempts"`
	NextRetryAt    *time.Time `bun:"next_retry_at"`
	TriggeredAt    time.Time  `bun:"triggered_at,notnull"`
	DeliveredAt    *time.Time `bun:"delivered_at"`
	ResponseStatus int        `bun:"response_status"`
	ResponseBody   string     `bun:"response_body"`
	ErrorMessage   string     `bun:"error_message"`
	DurationMs     int        `bun:"duration_ms"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
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
