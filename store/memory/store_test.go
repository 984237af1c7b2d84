package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/internal/entity"
	"github.com/storekit/hooks/subscription"
)

func newSubscription(tenantID, url string, t event.Type) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:    entity.New(),
		ID:        id.NewSubscriptionID(),
		TenantID:  tenantID,
		URL:       url,
		Secret:    "whsec_test",
		EventType: t,
		Active:    true,
	}
}

func newRecord(tenantID string, status delivery.Status) *delivery.Record {
	return &delivery.Record{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		EventID:       id.NewEventID(),
		TenantID:      tenantID,
		Kind:          delivery.KindWebhook,
		EventType:     event.TypeOrderPaid,
		URL:           "https://example.com/hooks",
		Status:        status,
		AttemptNumber: 1,
		MaxAttempts:   5,
		TriggeredAt:   time.Now().UTC(),
	}
}

func TestSubscriptionUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	sub := newSubscription("tenant-1", "https://example.com/a", event.TypeOrderPaid)
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	dup := newSubscription("tenant-1", "https://example.com/a", event.TypeOrderPaid)
	if err := s.CreateSubscription(ctx, dup); !errors.Is(err, hooks.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}

	// Same triple for a different tenant is fine.
	other := newSubscription("tenant-2", "https://example.com/a", event.TypeOrderPaid)
	if err := s.CreateSubscription(ctx, other); err != nil {
		t.Fatal(err)
	}
}

func TestResolveSubscriptions(t *testing.T) {
	s := New()
	ctx := context.Background()

	match := newSubscription("tenant-1", "https://example.com/a", event.TypeOrderPaid)
	otherType := newSubscription("tenant-1", "https://example.com/b", event.TypeOrderCancelled)
	otherTenant := newSubscription("tenant-2", "https://example.com/c", event.TypeOrderPaid)
	paused := newSubscription("tenant-1", "https://example.com/d", event.TypeOrderPaid)
	paused.Paused = true
	inactive := newSubscription("tenant-1", "https://example.com/e", event.TypeOrderPaid)
	inactive.Active = false

	for _, sub := range []*subscription.Subscription{match, otherType, otherTenant, paused, inactive} {
		if err := s.CreateSubscription(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ResolveSubscriptions(ctx, "tenant-1", event.TypeOrderPaid)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly the eligible matching subscription, got %d", len(got))
	}
	if got[0].ID != match.ID {
		t.Fatalf("resolved wrong subscription %s", got[0].ID)
	}
}

func TestClaimDeliveryCAS(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := newRecord("tenant-1", delivery.StatusPending)
	if err := s.CreateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	claimed, ok, err := s.ClaimDelivery(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("first claim should succeed, ok=%v err=%v", ok, err)
	}
	if claimed.Status != delivery.StatusSending {
		t.Fatalf("claimed record should be sending, got %s", claimed.Status)
	}

	// Second claim loses the race.
	_, ok, err = s.ClaimDelivery(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second claim should fail")
	}

	// Missing records are reported distinctly from claimed ones.
	_, _, err = s.ClaimDelivery(ctx, id.NewDeliveryID())
	if !errors.Is(err, hooks.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestClaimDeliveryConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := newRecord("tenant-1", delivery.StatusPending)
	if err := s.CreateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wins := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ClaimDelivery(ctx, rec.ID)
			if err != nil {
				t.Error(err)
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("exactly one claim should win, got %d", winners)
	}
}

func TestClaimDue(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newRecord("tenant-1", delivery.StatusRetrying)
	due.NextRetryAt = &past
	pending := newRecord("tenant-1", delivery.StatusPending)
	notYet := newRecord("tenant-1", delivery.StatusRetrying)
	notYet.NextRetryAt = &future
	done := newRecord("tenant-1", delivery.StatusSuccess)

	for _, rec := range []*delivery.Record{due, pending, notYet, done} {
		if err := s.CreateDelivery(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	batch, err := s.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected the due and pending records, got %d", len(batch))
	}
	for _, rec := range batch {
		if rec.Status != delivery.StatusSending {
			t.Fatalf("claimed records should be sending, got %s", rec.Status)
		}
	}

	// A second sweep finds nothing: everything due is claimed.
	again, err := s.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("expected empty second sweep, got %d", len(again))
	}
}

func TestClaimDueRespectsLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.CreateDelivery(ctx, newRecord("tenant-1", delivery.StatusPending)); err != nil {
			t.Fatal(err)
		}
	}

	batch, err := s.ClaimDue(ctx, time.Now().UTC(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
}

func TestGetDeliveryByEventID(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := newRecord("tenant-1", delivery.StatusPending)
	if err := s.CreateDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDeliveryByEventID(ctx, rec.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID {
		t.Fatalf("wrong record %s", got.ID)
	}

	if _, err := s.GetDeliveryByEventID(ctx, id.NewEventID()); !errors.Is(err, hooks.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestListDeliveriesFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	subID := id.NewSubscriptionID()
	for i := 0; i < 3; i++ {
		rec := newRecord("tenant-1", delivery.StatusSuccess)
		rec.SubscriptionID = subID
		if err := s.CreateDelivery(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	failed := newRecord("tenant-1", delivery.StatusFailed)
	failed.SubscriptionID = subID
	if err := s.CreateDelivery(ctx, failed); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListDeliveriesBySubscription(ctx, subID, delivery.ListOpts{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}

	status := delivery.StatusFailed
	onlyFailed, err := s.ListDeliveriesBySubscription(ctx, subID, delivery.ListOpts{Limit: 50, Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyFailed) != 1 {
		t.Fatalf("expected 1 failed record, got %d", len(onlyFailed))
	}

	page, err := s.ListDeliveriesByTenant(ctx, "tenant-1", delivery.ListOpts{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func TestCountDeliveriesByStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, status := range []delivery.Status{
		delivery.StatusSuccess, delivery.StatusSuccess,
		delivery.StatusFailed, delivery.StatusPending,
	} {
		if err := s.CreateDelivery(ctx, newRecord("tenant-1", status)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateDelivery(ctx, newRecord("tenant-2", delivery.StatusSuccess)); err != nil {
		t.Fatal(err)
	}

	counts, err := s.CountDeliveriesByStatus(ctx, "tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts[delivery.StatusSuccess] != 2 || counts[delivery.StatusFailed] != 1 || counts[delivery.StatusPending] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	all, err := s.CountDeliveriesByStatus(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if all[delivery.StatusSuccess] != 3 {
		t.Fatalf("expected 3 successes across tenants, got %d", all[delivery.StatusSuccess])
	}
}

func TestListActiveInstallations(t *testing.T) {
	s := New()
	ctx := context.Background()

	active := &installation.Installation{
		Entity:     entity.New(),
		ID:         id.NewInstallationID(),
		TenantID:   "tenant-1",
		AppName:    "a",
		ClientID:   "client_a",
		WebhookURL: "https://a.example.com/hooks",
		Status:     installation.StatusActive,
	}
	revoked := &installation.Installation{
		Entity:     entity.New(),
		ID:         id.NewInstallationID(),
		TenantID:   "tenant-1",
		AppName:    "b",
		ClientID:   "client_b",
		WebhookURL: "https://b.example.com/hooks",
		Status:     installation.StatusRevoked,
	}
	noURL := &installation.Installation{
		Entity:   entity.New(),
		ID:       id.NewInstallationID(),
		TenantID: "tenant-1",
		AppName:  "c",
		ClientID: "client_c",
		Status:   installation.StatusActive,
	}

	for _, inst := range []*installation.Installation{active, revoked, noURL} {
		if err := s.CreateInstallation(ctx, inst); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListActiveInstallations(ctx, "tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the active installation with a webhook URL, got %d", len(got))
	}
	if got[0].ID != active.ID {
		t.Fatalf("wrong installation %s", got[0].ID)
	}
}

func TestClosedStoreFailsPing(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, hooks.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}
