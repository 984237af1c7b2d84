package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/signature"
)

// ErrInsecureURL is returned when a subscription endpoint is not HTTPS.
// Webhook payloads carry commerce data; plaintext destinations are refused.
var ErrInsecureURL = errors.New("subscription: endpoint url must use https")

// Service provides subscription management operations.
type Service struct {
	store      Store
	logger     *slog.Logger
	maxRetries int
}

// NewService creates a new subscription service. maxRetries is the default
// attempt budget applied when an input does not set one.
func NewService(store Store, logger *slog.Logger, maxRetries int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Create registers a new webhook subscription. The endpoint URL must be
// HTTPS, and the (tenant, url, event type) triple must be unique.
func (svc *Service) Create(ctx context.Context, in Input) (*Subscription, error) {
	u, err := url.ParseRequestURI(in.URL)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: "invalid URL"}
	}
	if u.Scheme != "https" {
		return nil, ErrInsecureURL
	}

	if in.TenantID == "" {
		return nil, &ValidationError{Field: "tenant_id", Message: "required"}
	}

	if in.EventType == "" {
		return nil, &ValidationError{Field: "event_type", Message: "required"}
	}
	// Accept the enum or dotted wire form, store the enum.
	eventType, ok := event.ParseType(string(in.EventType))
	if !ok {
		return nil, &ValidationError{Field: "event_type", Message: "unknown event type"}
	}

	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	apiVersion := in.APIVersion
	if apiVersion == "" {
		apiVersion = "v1"
	}

	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = svc.maxRetries
	}

	sub := &Subscription{
		Entity:     entity.New(),
		ID:         id.NewSubscriptionID(),
		TenantID:   in.TenantID,
		Name:       in.Name,
		URL:        in.URL,
		Secret:     secret,
		EventType:  eventType,
		APIVersion: apiVersion,
		Active:     true,
		Paused:     false,
		MaxRetries: maxRetries,
		Headers:    in.Headers,
		RateLimit:  in.RateLimit,
		Metadata:   in.Metadata,
	}

	if err := svc.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "subscription created",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("tenant_id", sub.TenantID),
		slog.String("event_type", string(sub.EventType)))

	return sub, nil
}

// Get returns a subscription by ID.
func (svc *Service) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	return svc.store.GetSubscription(ctx, subID)
}

// Update modifies an existing subscription. Empty fields keep their
// current values.
func (svc *Service) Update(ctx context.Context, subID id.ID, in Input) (*Subscription, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if in.URL != "" {
		u, err := url.ParseRequestURI(in.URL)
		if err != nil {
			return nil, &ValidationError{Field: "url", Message: "invalid URL"}
		}
		if u.Scheme != "https" {
			return nil, &ValidationError{Field: "url", Message: "must use https"}
		}
		sub.URL = in.URL
	}
	if in.Name != "" {
		sub.Name = in.Name
	}
	if in.EventType != "" {
		eventType, ok := event.ParseType(string(in.EventType))
		if !ok {
			return nil, &ValidationError{Field: "event_type", Message: "unknown event type"}
		}
		sub.EventType = eventType
	}
	if in.APIVersion != "" {
		sub.APIVersion = in.APIVersion
	}
	if in.MaxRetries > 0 {
		sub.MaxRetries = in.MaxRetries
	}
	if in.Headers != nil {
		sub.Headers = in.Headers
	}
	if in.RateLimit > 0 {
		sub.RateLimit = in.RateLimit
	}
	if in.Metadata != nil {
		sub.Metadata = in.Metadata
	}

	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Delete removes a subscription. Past deliveries are kept.
func (svc *Service) Delete(ctx context.Context, subID id.ID) error {
	return svc.store.DeleteSubscription(ctx, subID)
}

// List returns subscriptions for a tenant.
func (svc *Service) List(ctx context.Context, tenantID string, opts ListOpts) ([]*Subscription, error) {
	return svc.store.ListSubscriptions(ctx, tenantID, opts)
}

// Pause stops deliveries to a subscription without deleting it.
func (svc *Service) Pause(ctx context.Context, subID id.ID) error {
	return svc.store.SetPaused(ctx, subID, true)
}

// Resume re-enables deliveries to a paused subscription.
func (svc *Service) Resume(ctx context.Context, subID id.ID) error {
	return svc.store.SetPaused(ctx, subID, false)
}

// RotateSecret generates a new signing secret for a subscription.
func (svc *Service) RotateSecret(ctx context.Context, subID id.ID) (string, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	sub.Secret = newSecret
	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return "", err
	}

	return newSecret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "subscription validation: " + e.Field + ": " + e.Message
}
