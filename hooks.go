package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/ratelimit"
	"github.com/storekit/hooks/store"
	"github.com/storekit/hooks/subscription"
)

// wireServices initializes the internal services after options have been applied.
func (h *Hub) wireServices() {
	h.validator = capability.NewValidator()
	h.limiter = ratelimit.New()

	h.subscriptionSvc = subscription.NewService(h.store, h.logger, h.config.MaxRetries)
	h.installationSvc = installation.NewService(h.store, h.logger)

	h.engine = delivery.NewEngine(h.store, h.limiter, delivery.EngineConfig{
		Concurrency:    h.config.Concurrency,
		SweepInterval:  h.config.SweepInterval,
		BatchSize:      h.config.BatchSize,
		RequestTimeout: h.config.RequestTimeout,
		RetryWindow:    h.config.RetryWindow,
		Metrics:        h.metrics,
		Tracer:         h.tracer,
	}, h.logger)
}

// Start begins the delivery engine.
func (h *Hub) Start(ctx context.Context) {
	h.engine.Start(ctx)
}

// Stop gracefully shuts down the delivery engine.
func (h *Hub) Stop(ctx context.Context) {
	h.engine.Stop(ctx)
}

// RegisterSchema attaches a JSON Schema to an event type; Publish then
// validates that type's data against it.
func (h *Hub) RegisterSchema(t event.Type, schema []byte) error {
	return h.validator.RegisterSchema(t, schema)
}

// Publish fans an event out to every eligible subscriber: the tenant's
// active, unpaused webhook subscriptions for the exact event type, and
// the tenant's active app installations whose granted scopes allow it.
//
// Each target gets its own delivery chain: a fresh eventId, a rendered
// envelope persisted on a pending ledger record, and an immediate
// asynchronous attempt. Publish returns once the records are persisted;
// it never waits on subscriber I/O. Zero targets is a no-op.
func (h *Hub) Publish(ctx context.Context, evt *event.Event) error {
	t, ok := event.ParseType(string(evt.Type))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, evt.Type)
	}
	evt.Type = t

	if err := h.validator.Validate(t, evt.Data); err != nil {
		return fmt.Errorf("%w: %s", ErrPayloadValidationFailed, err.Error())
	}

	targets, err := h.resolveTargets(ctx, evt)
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordPublish(string(t))
	}

	if len(targets) == 0 {
		h.logger.DebugContext(ctx, "no subscribers for event",
			"type", t, "tenant_id", evt.TenantID)
		return nil
	}

	now := time.Now().UTC()
	for _, tgt := range targets {
		rec := h.newRecord(evt, tgt, now)

		envelope := event.NewEnvelope(rec.EventID.String(), evt, tgt.apiVersion, now)
		payload, marshalErr := envelope.Marshal()
		if marshalErr != nil {
			// A payload that cannot serialize will never deliver. Record
			// the failure so the ledger shows what happened.
			rec.Status = delivery.StatusFailed
			rec.ErrorMessage = "marshal envelope: " + marshalErr.Error()
			h.logger.ErrorContext(ctx, "envelope serialization failed",
				"event_id", rec.EventID, "type", t, "error", marshalErr)
			if createErr := h.store.CreateDelivery(ctx, rec); createErr != nil {
				return fmt.Errorf("hooks: persist delivery: %w", createErr)
			}
			continue
		}
		rec.Payload = payload

		if createErr := h.store.CreateDelivery(ctx, rec); createErr != nil {
			return fmt.Errorf("hooks: persist delivery: %w", createErr)
		}

		if h.metrics != nil {
			h.metrics.PendingDeliveries.Inc()
		}

		h.engine.Dispatch(ctx, rec.ID)
	}

	h.logger.DebugContext(ctx, "event published",
		"type", t, "tenant_id", evt.TenantID, "targets", len(targets))

	return nil
}

// target is one subscriber resolved during fan-out.
type target struct {
	kind           delivery.Kind
	subscriptionID id.ID
	installationID id.ID
	url            string
	apiVersion     string
	maxAttempts    int
}

// resolveTargets gathers the subscribers a published event reaches.
func (h *Hub) resolveTargets(ctx context.Context, evt *event.Event) ([]target, error) {
	var targets []target

	subs, err := h.store.ResolveSubscriptions(ctx, evt.TenantID, evt.Type)
	if err != nil {
		return nil, fmt.Errorf("hooks: resolve subscriptions: %w", err)
	}
	for _, sub := range subs {
		apiVersion := sub.APIVersion
		if apiVersion == "" {
			apiVersion = h.config.APIVersion
		}
		maxAttempts := sub.MaxRetries
		if maxAttempts <= 0 {
			maxAttempts = h.config.MaxRetries
		}
		targets = append(targets, target{
			kind:           delivery.KindWebhook,
			subscriptionID: sub.ID,
			url:            sub.URL,
			apiVersion:     apiVersion,
			maxAttempts:    maxAttempts,
		})
	}

	insts, err := h.resolveInstallations(ctx, evt)
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		targets = append(targets, target{
			kind:           delivery.KindApp,
			installationID: inst.ID,
			url:            inst.WebhookURL,
			apiVersion:     h.config.APIVersion,
			maxAttempts:    h.config.MaxRetries,
		})
	}

	return targets, nil
}

// resolveInstallations applies the scope gate. Lifecycle events go only
// to the installation they concern, named by data["installationId"], and
// skip both the scope check and the status check so the final
// uninstall notice still goes out.
func (h *Hub) resolveInstallations(ctx context.Context, evt *event.Event) ([]*installation.Installation, error) {
	if evt.Type.IsLifecycle() {
		raw, _ := evt.Data["installationId"].(string)
		if raw == "" {
			return nil, nil
		}
		instID, err := id.ParseInstallationID(raw)
		if err != nil {
			return nil, fmt.Errorf("hooks: lifecycle event installationId: %w", err)
		}
		inst, err := h.store.GetInstallation(ctx, instID)
		if err != nil {
			return nil, fmt.Errorf("hooks: resolve installation: %w", err)
		}
		if inst.WebhookURL == "" {
			return nil, nil
		}
		return []*installation.Installation{inst}, nil
	}

	insts, err := h.store.ListActiveInstallations(ctx, evt.TenantID)
	if err != nil {
		return nil, fmt.Errorf("hooks: resolve installations: %w", err)
	}

	var eligible []*installation.Installation
	for _, inst := range insts {
		if capability.Satisfies(inst.GrantedScopes, evt.Type) {
			eligible = append(eligible, inst)
		}
	}
	return eligible, nil
}

// newRecord builds the pending ledger row for one target.
func (h *Hub) newRecord(evt *event.Event, tgt target, now time.Time) *delivery.Record {
	return &delivery.Record{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		EventID:        id.NewEventID(),
		TenantID:       evt.TenantID,
		Kind:           tgt.kind,
		SubscriptionID: tgt.subscriptionID,
		InstallationID: tgt.installationID,
		EventType:      evt.Type,
		URL:            tgt.url,
		Status:         delivery.StatusPending,
		AttemptNumber:  1,
		MaxAttempts:    tgt.maxAttempts,
		TriggeredAt:    now,
	}
}

// RetryDelivery manually re-arms a delivery record and attempts it
// immediately. A record that already succeeded is never re-sent.
// Terminal records get a fresh attempt budget.
func (h *Hub) RetryDelivery(ctx context.Context, recID id.ID) error {
	rec, err := h.store.GetDelivery(ctx, recID)
	if err != nil {
		return err
	}

	if rec.Status == delivery.StatusSuccess {
		return fmt.Errorf("%w: %s", ErrRetryNotAllowed, recID)
	}

	// A terminal record left the pending gauge when it finished; putting
	// it back in flight has to re-enter it, or the gauge drifts negative
	// when the retry terminates again.
	wasTerminal := rec.Status.Terminal()
	if wasTerminal {
		rec.AttemptNumber = 1
	}
	now := time.Now().UTC()
	rec.Status = delivery.StatusPending
	rec.NextRetryAt = &now

	if err := h.store.UpdateDelivery(ctx, rec); err != nil {
		return fmt.Errorf("hooks: re-arm delivery: %w", err)
	}

	if wasTerminal && h.metrics != nil {
		h.metrics.PendingDeliveries.Inc()
	}

	h.logger.InfoContext(ctx, "manual retry requested", "delivery_id", rec.ID)

	h.engine.Dispatch(ctx, rec.ID)
	return nil
}

// TestDelivery sends a synthetic test event to a single subscription and
// records it in the ledger like any other delivery, with a single
// attempt and no retries.
func (h *Hub) TestDelivery(ctx context.Context, subID id.ID) (*delivery.Record, error) {
	sub, err := h.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	evt := &event.Event{
		Type:     event.TypeTest,
		TenantID: sub.TenantID,
		Data: map[string]any{
			"test":         true,
			"subscription": sub.ID.String(),
		},
	}

	apiVersion := sub.APIVersion
	if apiVersion == "" {
		apiVersion = h.config.APIVersion
	}

	rec := h.newRecord(evt, target{
		kind:           delivery.KindWebhook,
		subscriptionID: sub.ID,
		url:            sub.URL,
		apiVersion:     apiVersion,
		maxAttempts:    1,
	}, now)

	envelope := event.NewEnvelope(rec.EventID.String(), evt, apiVersion, now)
	payload, err := envelope.Marshal()
	if err != nil {
		return nil, fmt.Errorf("hooks: marshal test envelope: %w", err)
	}
	rec.Payload = payload

	if err := h.store.CreateDelivery(ctx, rec); err != nil {
		return nil, fmt.Errorf("hooks: persist test delivery: %w", err)
	}

	if h.metrics != nil {
		h.metrics.PendingDeliveries.Inc()
	}

	h.engine.Dispatch(ctx, rec.ID)
	return rec, nil
}

// Stats returns per-status delivery counts for a tenant. An empty
// tenantID covers the whole ledger.
func (h *Hub) Stats(ctx context.Context, tenantID string) (map[delivery.Status]int, error) {
	return h.store.CountDeliveriesByStatus(ctx, tenantID)
}

// Subscriptions returns the subscription management service.
func (h *Hub) Subscriptions() *subscription.Service {
	return h.subscriptionSvc
}

// Installations returns the installation management service.
func (h *Hub) Installations() *installation.Service {
	return h.installationSvc
}

// Store returns the underlying store.
func (h *Hub) Store() store.Store {
	return h.store
}
