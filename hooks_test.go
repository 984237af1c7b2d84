package hooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	gumetrics "github.com/xraph/go-utils/metrics"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/observability"
	"github.com/storekit/hooks/store/memory"
	"github.com/storekit/hooks/subscription"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T) (*hooks.Hub, *memory.Store) {
	t.Helper()
	s := memory.New()
	h, err := hooks.New(hooks.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(ctx()) })
	return h, s
}

// createSubscription seeds the store directly so tests can point
// subscriptions at plain-HTTP test servers.
func createSubscription(t *testing.T, s *memory.Store, tenantID, url string, eventType event.Type) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		Entity:     entity.New(),
		ID:         id.NewSubscriptionID(),
		TenantID:   tenantID,
		URL:        url,
		Secret:     "whsec_test_secret_1234567890abcdef1234567890abcdef",
		EventType:  eventType,
		APIVersion: "v1",
		Active:     true,
		MaxRetries: 3,
	}
	if err := s.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func createInstallation(t *testing.T, s *memory.Store, tenantID, url string, scopes []capability.Scope) *installation.Installation {
	t.Helper()
	inst := &installation.Installation{
		Entity:        entity.New(),
		ID:            id.NewInstallationID(),
		TenantID:      tenantID,
		AppName:       "test-app",
		ClientID:      "client_" + strconv.FormatInt(clientSeq.Add(1), 10),
		WebhookURL:    url,
		Secret:        "whsec_app_secret_1234567890abcdef1234567890abcdef12",
		GrantedScopes: scopes,
		Status:        installation.StatusActive,
	}
	if err := s.CreateInstallation(ctx(), inst); err != nil {
		t.Fatal(err)
	}
	return inst
}

var clientSeq atomic.Int64

func okServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForRecords(t *testing.T, s *memory.Store, tenantID string, status delivery.Status, want int) []*delivery.Record {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		records, err := s.ListDeliveriesByTenant(ctx(), tenantID, delivery.ListOpts{Limit: 100, Status: &status})
		if err != nil {
			t.Fatal(err)
		}
		if len(records) >= want {
			return records
		}

		select {
		case <-deadline:
			t.Fatalf("timeout: wanted %d %s records, have %d", want, status, len(records))
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestPublishFansOutToEligibleSubscriptions(t *testing.T) {
	h, s := setup(t)

	var hits atomic.Int32
	srv := okServer(t, &hits)

	subA := createSubscription(t, s, "t1", srv.URL+"/a", event.TypeOrderPaid)
	subB := createSubscription(t, s, "t1", srv.URL+"/b", event.TypeOrderPaid)

	// Excluded: paused, inactive, other type, other tenant.
	paused := createSubscription(t, s, "t1", srv.URL+"/paused", event.TypeOrderPaid)
	paused.Paused = true
	inactive := createSubscription(t, s, "t1", srv.URL+"/inactive", event.TypeOrderPaid)
	inactive.Active = false
	createSubscription(t, s, "t1", srv.URL+"/other-type", event.TypeOrderCancelled)
	createSubscription(t, s, "t2", srv.URL+"/other-tenant", event.TypeOrderPaid)

	err := h.Publish(ctx(), &event.Event{
		Type:       event.TypeOrderPaid,
		TenantID:   "t1",
		TenantSlug: "acme",
		Data:       map[string]any{"orderId": 42},
	})
	if err != nil {
		t.Fatal(err)
	}

	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 2)
	if len(records) != 2 {
		t.Fatalf("expected 2 successful records, got %d", len(records))
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 HTTP attempts, got %d", hits.Load())
	}

	// Each target gets its own delivery chain with a distinct event ID.
	if records[0].EventID == records[1].EventID {
		t.Fatal("each record should carry its own event ID")
	}

	gotSubs := map[string]bool{}
	for _, rec := range records {
		gotSubs[rec.SubscriptionID.String()] = true
		if rec.Kind != delivery.KindWebhook {
			t.Fatalf("expected webhook record, got %s", rec.Kind)
		}
	}
	if !gotSubs[subA.ID.String()] || !gotSubs[subB.ID.String()] {
		t.Fatalf("wrong subscriptions hit: %v", gotSubs)
	}
}

func TestPublishReturnsBeforeSubscriberIO(t *testing.T) {
	s := memory.New()
	h, err := hooks.New(hooks.WithStore(s), hooks.WithConcurrency(1))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(ctx()) })

	// One worker slot and a slow subscriber: the second delivery must
	// wait for the first, but the publisher must not wait for either.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(400 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	createSubscription(t, s, "t1", srv.URL+"/a", event.TypeOrderPaid)
	createSubscription(t, s, "t1", srv.URL+"/b", event.TypeOrderPaid)

	start := time.Now()
	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("publish blocked on subscriber I/O for %s", elapsed)
	}

	waitForRecords(t, s, "t1", delivery.StatusSuccess, 2)
}

func TestPublishRendersCanonicalEnvelope(t *testing.T) {
	h, s := setup(t)
	srv := okServer(t, nil)

	createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	if err := h.Publish(ctx(), &event.Event{
		Type:       event.TypeOrderPaid,
		TenantID:   "t1",
		TenantSlug: "acme",
		Data:       map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}

	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)

	var envelope struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		APIVersion string `json:"apiVersion"`
		CreatedAt  string `json:"createdAt"`
		Tenant     struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"tenant"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(records[0].Payload, &envelope); err != nil {
		t.Fatal(err)
	}

	if envelope.ID != records[0].EventID.String() {
		t.Fatalf("envelope id %q should match the record's event ID %q", envelope.ID, records[0].EventID)
	}
	if envelope.Type != "order.paid" {
		t.Fatalf("envelope type should be the dotted wire name, got %q", envelope.Type)
	}
	if envelope.APIVersion != "v1" {
		t.Fatalf("unexpected apiVersion %q", envelope.APIVersion)
	}
	if _, err := time.Parse(time.RFC3339, envelope.CreatedAt); err != nil {
		t.Fatalf("createdAt should be RFC3339, got %q", envelope.CreatedAt)
	}
	if envelope.Tenant.ID != "t1" || envelope.Tenant.Slug != "acme" {
		t.Fatalf("unexpected tenant block: %+v", envelope.Tenant)
	}
	if got := envelope.Data["orderId"]; got != float64(42) {
		t.Fatalf("unexpected data: %v", envelope.Data)
	}
}

func TestPublishUnknownEventType(t *testing.T) {
	h, _ := setup(t)

	err := h.Publish(ctx(), &event.Event{
		Type:     "NOT_A_TYPE",
		TenantID: "t1",
	})
	if !errors.Is(err, hooks.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestPublishValidatesRegisteredSchema(t *testing.T) {
	h, s := setup(t)
	srv := okServer(t, nil)
	createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	schema := []byte(`{"type": "object", "required": ["orderId"]}`)
	if err := h.RegisterSchema(event.TypeOrderPaid, schema); err != nil {
		t.Fatal(err)
	}

	err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"wrong": "shape"},
	})
	if !errors.Is(err, hooks.ErrPayloadValidationFailed) {
		t.Fatalf("expected ErrPayloadValidationFailed, got %v", err)
	}

	// A conforming payload goes through.
	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}
	waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
}

func TestPublishNoTargetsIsNoop(t *testing.T) {
	h, s := setup(t)

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 1},
	}); err != nil {
		t.Fatal(err)
	}

	records, err := s.ListDeliveriesByTenant(ctx(), "t1", delivery.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestPublishGatesInstallationsByScope(t *testing.T) {
	h, s := setup(t)

	var hits atomic.Int32
	srv := okServer(t, &hits)

	granted := createInstallation(t, s, "t1", srv.URL+"/granted", []capability.Scope{capability.ScopeReadOrders})
	createInstallation(t, s, "t1", srv.URL+"/denied", []capability.Scope{capability.ScopeReadProducts})

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}

	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	if len(records) != 1 {
		t.Fatalf("expected only the scoped installation, got %d records", len(records))
	}
	if records[0].Kind != delivery.KindApp {
		t.Fatalf("expected app record, got %s", records[0].Kind)
	}
	if records[0].InstallationID != granted.ID {
		t.Fatalf("wrong installation %s", records[0].InstallationID)
	}
}

func TestLifecycleEventTargetsNamedInstallation(t *testing.T) {
	h, s := setup(t)

	var hits atomic.Int32
	srv := okServer(t, &hits)

	// Revoked, no scopes: lifecycle routing bypasses both checks.
	target := createInstallation(t, s, "t1", srv.URL+"/target", nil)
	target.Status = installation.StatusRevoked
	createInstallation(t, s, "t1", srv.URL+"/bystander", []capability.Scope{capability.ScopeReadOrders})

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeAppUninstalled,
		TenantID: "t1",
		Data:     map[string]any{"installationId": target.ID.String()},
	}); err != nil {
		t.Fatal(err)
	}

	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	if len(records) != 1 {
		t.Fatalf("lifecycle events go only to the named installation, got %d records", len(records))
	}
	if records[0].InstallationID != target.ID {
		t.Fatalf("wrong installation %s", records[0].InstallationID)
	}
}

func TestLifecycleEventWithoutInstallationIDIsNoop(t *testing.T) {
	h, s := setup(t)

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeAppInstalled,
		TenantID: "t1",
		Data:     map[string]any{},
	}); err != nil {
		t.Fatal(err)
	}

	records, err := s.ListDeliveriesByTenant(ctx(), "t1", delivery.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestRetryDelivery(t *testing.T) {
	h, s := setup(t)

	var hits atomic.Int32
	srv := okServer(t, &hits)
	createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}

	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	rec := records[0]

	// Successful deliveries are never re-sent.
	if err := h.RetryDelivery(ctx(), rec.ID); !errors.Is(err, hooks.ErrRetryNotAllowed) {
		t.Fatalf("expected ErrRetryNotAllowed for a delivered record, got %v", err)
	}

	// An exhausted record gets a fresh budget and an immediate attempt.
	rec.Status = delivery.StatusExhausted
	rec.AttemptNumber = 3
	if err := s.UpdateDelivery(ctx(), rec); err != nil {
		t.Fatal(err)
	}

	before := hits.Load()
	if err := h.RetryDelivery(ctx(), rec.ID); err != nil {
		t.Fatal(err)
	}

	got := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	if got[0].AttemptNumber != 1 {
		t.Fatalf("manual retry of a terminal record should reset the budget, got attempt %d", got[0].AttemptNumber)
	}
	if hits.Load() != before+1 {
		t.Fatalf("expected one more attempt, got %d total", hits.Load())
	}

	// Unknown records report not found.
	if err := h.RetryDelivery(ctx(), id.NewDeliveryID()); !errors.Is(err, hooks.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestRetryDeliveryKeepsPendingGaugeBalanced(t *testing.T) {
	s := memory.New()
	m := observability.NewMetrics(gumetrics.NewMetricsCollector("hooks-test"))
	h, err := hooks.New(hooks.WithStore(s), hooks.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(ctx()) })

	srv := okServer(t, nil)
	createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}
	records := waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	if got := m.PendingDeliveries.Value(); got != 0 {
		t.Fatalf("gauge should be back at 0 after delivery, got %f", got)
	}

	// Re-arming a terminal record puts it back in flight; when that
	// retry terminates too, the gauge must land on 0, not -1.
	rec := records[0]
	rec.Status = delivery.StatusExhausted
	if err := s.UpdateDelivery(ctx(), rec); err != nil {
		t.Fatal(err)
	}
	if err := h.RetryDelivery(ctx(), rec.ID); err != nil {
		t.Fatal(err)
	}
	waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)

	if got := m.PendingDeliveries.Value(); got != 0 {
		t.Fatalf("gauge drifted to %f across a manual retry", got)
	}
}

func TestTestDelivery(t *testing.T) {
	h, s := setup(t)

	var hits atomic.Int32
	srv := okServer(t, &hits)
	sub := createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	rec, err := h.TestDelivery(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}

	if rec.EventType != event.TypeTest {
		t.Fatalf("expected TEST event, got %s", rec.EventType)
	}
	if rec.MaxAttempts != 1 {
		t.Fatalf("test deliveries get a single attempt, got budget %d", rec.MaxAttempts)
	}

	waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)
	if hits.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", hits.Load())
	}

	if _, err := h.TestDelivery(ctx(), id.NewSubscriptionID()); !errors.Is(err, hooks.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	h, s := setup(t)
	srv := okServer(t, nil)
	createSubscription(t, s, "t1", srv.URL, event.TypeOrderPaid)

	if err := h.Publish(ctx(), &event.Event{
		Type:     event.TypeOrderPaid,
		TenantID: "t1",
		Data:     map[string]any{"orderId": 42},
	}); err != nil {
		t.Fatal(err)
	}
	waitForRecords(t, s, "t1", delivery.StatusSuccess, 1)

	counts, err := h.Stats(ctx(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if counts[delivery.StatusSuccess] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := hooks.New(); !errors.Is(err, hooks.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}
