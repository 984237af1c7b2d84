package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/store/memory"
	"github.com/storekit/hooks/subscription"
)

func setupEngine(t *testing.T, handler http.Handler) (*memory.Store, *delivery.Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := memory.New()
	cfg := delivery.EngineConfig{
		Concurrency:    2,
		SweepInterval:  50 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: 5 * time.Second,
		RetryWindow:    72 * time.Hour,
	}

	engine := delivery.NewEngine(store, nil, cfg, nil)
	return store, engine, srv
}

func createTestData(t *testing.T, store *memory.Store, url string) (*subscription.Subscription, *delivery.Record) {
	t.Helper()
	ctx := context.Background()

	sub := &subscription.Subscription{
		Entity:     entity.New(),
		ID:         id.NewSubscriptionID(),
		TenantID:   "tenant-1",
		URL:        url,
		Secret:     testSecret,
		EventType:  event.TypeOrderPaid,
		APIVersion: "v1",
		Active:     true,
		MaxRetries: 3,
	}
	if err := store.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	rec := &delivery.Record{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		EventID:        id.NewEventID(),
		TenantID:       "tenant-1",
		Kind:           delivery.KindWebhook,
		SubscriptionID: sub.ID,
		EventType:      event.TypeOrderPaid,
		URL:            url,
		Payload:        []byte(`{"type":"order.paid","data":{"orderId":42}}`),
		Status:         delivery.StatusPending,
		AttemptNumber:  1,
		MaxAttempts:    3,
		TriggeredAt:    time.Now().UTC(),
	}
	if err := store.CreateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	return sub, rec
}

func waitForStatus(t *testing.T, store *memory.Store, recID id.ID, want delivery.Status) *delivery.Record {
	t.Helper()
	ctx := context.Background()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			got, _ := store.GetDelivery(ctx, recID)
			t.Fatalf("timeout waiting for status %s, record is %+v", want, got)
		default:
		}

		got, err := store.GetDelivery(ctx, recID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngineDeliversSuccessfully(t *testing.T) {
	var delivered atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler)
	_, rec := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Dispatch(ctx, rec.ID)

	got := waitForStatus(t, store, rec.ID, delivery.StatusSuccess)
	engine.Stop(ctx)

	if delivered.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", delivered.Load())
	}
	if got.ResponseStatus != 200 {
		t.Fatalf("expected recorded status 200, got %d", got.ResponseStatus)
	}
	if got.DeliveredAt == nil {
		t.Fatal("expected DeliveredAt to be set")
	}
	if got.NextRetryAt != nil {
		t.Fatal("successful record should have no retry schedule")
	}
}

func TestEngineRetriesAndSucceeds(t *testing.T) {
	var attempts atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler)
	_, rec := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Dispatch(ctx, rec.ID)

	got := waitForStatus(t, store, rec.ID, delivery.StatusRetrying)

	if got.AttemptNumber != 2 {
		t.Fatalf("expected attempt number 2 after first failure, got %d", got.AttemptNumber)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("expected backoff at least a minute out, got %v", got.NextRetryAt)
	}
	if got.ResponseStatus != 500 {
		t.Fatalf("expected recorded status 500, got %d", got.ResponseStatus)
	}

	// Rewind the schedule so the sweep picks it up immediately.
	past := time.Now().UTC().Add(-time.Second)
	got.NextRetryAt = &past
	if err := store.UpdateDelivery(ctx, got); err != nil {
		t.Fatal(err)
	}

	engine.Start(ctx)
	final := waitForStatus(t, store, rec.ID, delivery.StatusSuccess)
	engine.Stop(ctx)

	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
	if final.AttemptNumber != 2 {
		t.Fatalf("expected attempt number 2, got %d", final.AttemptNumber)
	}
}

func TestEnginePermanentFailure(t *testing.T) {
	var attempts atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such hook"))
	})

	store, engine, srv := setupEngine(t, handler)
	_, rec := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Dispatch(ctx, rec.ID)

	got := waitForStatus(t, store, rec.ID, delivery.StatusFailed)
	engine.Stop(ctx)

	if attempts.Load() != 1 {
		t.Fatalf("4xx should not be retried, got %d attempts", attempts.Load())
	}
	if got.ResponseStatus != 404 {
		t.Fatalf("expected recorded status 404, got %d", got.ResponseStatus)
	}
	if got.ResponseBody != "no such hook" {
		t.Fatalf("expected response body to be recorded, got %q", got.ResponseBody)
	}
	if got.NextRetryAt != nil {
		t.Fatal("failed record should have no retry schedule")
	}
}

func TestEngineExhaustsAttemptBudget(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	store, engine, srv := setupEngine(t, handler)
	_, rec := createTestData(t, store, srv.URL)

	// Single-attempt budget: the first transient failure exhausts it.
	rec.MaxAttempts = 1
	ctx := context.Background()
	if err := store.UpdateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	engine.Dispatch(ctx, rec.ID)

	got := waitForStatus(t, store, rec.ID, delivery.StatusExhausted)
	engine.Stop(ctx)

	if got.ResponseStatus != 503 {
		t.Fatalf("expected recorded status 503, got %d", got.ResponseStatus)
	}
	if got.NextRetryAt != nil {
		t.Fatal("exhausted record should have no retry schedule")
	}
}

func TestEngineFailsWhenSubscriberGone(t *testing.T) {
	store, engine, srv := setupEngine(t, http.NotFoundHandler())
	_, rec := createTestData(t, store, srv.URL)

	// Point the record at a subscription that no longer exists.
	rec.SubscriptionID = id.NewSubscriptionID()
	ctx := context.Background()
	if err := store.UpdateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	engine.Dispatch(ctx, rec.ID)

	got := waitForStatus(t, store, rec.ID, delivery.StatusFailed)
	engine.Stop(ctx)

	if got.ErrorMessage == "" {
		t.Fatal("expected an error message for a vanished subscriber")
	}
}

func TestEngineDispatchSkipsClaimedRecords(t *testing.T) {
	var attempts atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler)
	_, rec := createTestData(t, store, srv.URL)

	// Simulate another worker holding the claim.
	rec.Status = delivery.StatusSending
	ctx := context.Background()
	if err := store.UpdateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	engine.Dispatch(ctx, rec.ID)
	engine.Stop(ctx)

	if attempts.Load() != 0 {
		t.Fatalf("claimed record should not be attempted, got %d attempts", attempts.Load())
	}

	got, err := store.GetDelivery(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != delivery.StatusSending {
		t.Fatalf("record status should be untouched, got %s", got.Status)
	}
}
