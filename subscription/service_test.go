package subscription_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/store/memory"
	"github.com/storekit/hooks/subscription"
)

func newService(t *testing.T) (*subscription.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return subscription.NewService(store, nil, 5), store
}

func validInput() subscription.Input {
	return subscription.Input{
		TenantID:  "tenant-1",
		Name:      "order hook",
		URL:       "https://example.com/hooks",
		EventType: event.TypeOrderPaid,
	}
}

func TestCreateSubscription(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if sub.ID.IsNil() {
		t.Fatal("expected generated ID")
	}
	if !sub.Active {
		t.Fatal("new subscriptions should be active")
	}
	if sub.Paused {
		t.Fatal("new subscriptions should not be paused")
	}
	if sub.APIVersion != "v1" {
		t.Fatalf("expected default API version v1, got %q", sub.APIVersion)
	}
	if sub.MaxRetries != 5 {
		t.Fatalf("expected service default max retries 5, got %d", sub.MaxRetries)
	}
	if !strings.HasPrefix(sub.Secret, "whsec_") {
		t.Fatalf("expected generated secret, got %q", sub.Secret)
	}
}

func TestCreateKeepsProvidedSecret(t *testing.T) {
	svc, _ := newService(t)

	in := validInput()
	in.Secret = "whsec_mine"
	in.MaxRetries = 10

	sub, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Secret != "whsec_mine" {
		t.Fatalf("provided secret should be kept, got %q", sub.Secret)
	}
	if sub.MaxRetries != 10 {
		t.Fatalf("provided max retries should be kept, got %d", sub.MaxRetries)
	}
}

func TestCreateRejectsHTTP(t *testing.T) {
	svc, _ := newService(t)

	in := validInput()
	in.URL = "http://example.com/hooks"

	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, subscription.ErrInsecureURL) {
		t.Fatalf("expected ErrInsecureURL, got %v", err)
	}
}

func TestCreateRejectsInvalidURL(t *testing.T) {
	svc, _ := newService(t)

	in := validInput()
	in.URL = "not a url"

	_, err := svc.Create(context.Background(), in)
	var verr *subscription.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateRejectsUnknownEventType(t *testing.T) {
	svc, _ := newService(t)

	in := validInput()
	in.EventType = "NOT_A_TYPE"

	var verr *subscription.ValidationError
	_, err := svc.Create(context.Background(), in)
	if !errors.As(err, &verr) || verr.Field != "event_type" {
		t.Fatalf("expected event_type validation error, got %v", err)
	}
}

func TestCreateAcceptsDottedWireName(t *testing.T) {
	svc, _ := newService(t)

	in := validInput()
	in.EventType = "order.paid"

	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("dotted wire name should be accepted, got %v", err)
	}
}

func TestCreateRejectsDuplicateTriple(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, validInput())
	if !errors.Is(err, hooks.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}

	// A different event type on the same URL is a distinct subscription.
	in := validInput()
	in.EventType = event.TypeOrderCancelled
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("different event type should not collide, got %v", err)
	}
}

func TestUpdateSubscription(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx, sub.ID, subscription.Input{
		Name: "renamed",
		URL:  "https://example.com/v2/hooks",
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Name != "renamed" {
		t.Fatalf("expected renamed, got %q", updated.Name)
	}
	if updated.URL != "https://example.com/v2/hooks" {
		t.Fatalf("URL not updated: %q", updated.URL)
	}
	// Untouched fields survive.
	if updated.EventType != event.TypeOrderPaid {
		t.Fatalf("event type should be unchanged, got %q", updated.EventType)
	}
	if updated.Secret != sub.Secret {
		t.Fatal("secret should be unchanged by update")
	}
}

func TestUpdateRejectsInsecureURL(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, sub.ID, subscription.Input{URL: "http://example.com"}); err == nil {
		t.Fatal("expected error for http URL on update")
	}
}

func TestDeleteSubscription(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, sub.ID); !errors.Is(err, hooks.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound after delete, got %v", err)
	}

	if err := svc.Delete(ctx, sub.ID); !errors.Is(err, hooks.ErrSubscriptionNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Pause(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Paused {
		t.Fatal("expected paused")
	}
	if got.Eligible() {
		t.Fatal("paused subscriptions are not eligible for fan-out")
	}

	if err := svc.Resume(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	got, err = svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Paused {
		t.Fatal("expected resumed")
	}
	if !got.Eligible() {
		t.Fatal("resumed subscriptions are eligible again")
	}
}

func TestRotateSecret(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}
	oldSecret := sub.Secret

	newSecret, err := svc.RotateSecret(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}

	if newSecret == oldSecret {
		t.Fatal("rotation should produce a new secret")
	}
	if !strings.HasPrefix(newSecret, "whsec_") {
		t.Fatalf("unexpected secret format: %q", newSecret)
	}

	got, err := svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Secret != newSecret {
		t.Fatal("rotated secret should be persisted")
	}
}

func TestListFiltersByTenant(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatal(err)
	}

	other := validInput()
	other.TenantID = "tenant-2"
	if _, err := svc.Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	subs, err := svc.List(ctx, "tenant-1", subscription.ListOpts{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription for tenant-1, got %d", len(subs))
	}
	if subs[0].TenantID != "tenant-1" {
		t.Fatalf("unexpected tenant %q", subs[0].TenantID)
	}
}
