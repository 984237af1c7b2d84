package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/api"
	"github.com/storekit/hooks/store/memory"
)

// testServer creates a Handler backed by a memory store and returns the test server.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := memory.New()
	h, err := hooks.New(hooks.WithStore(s))
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	t.Cleanup(func() { h.Stop(context.Background()) })

	srv := httptest.NewServer(api.NewHandler(h, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// createSub registers a subscription over HTTP and returns its decoded body.
func createSub(t *testing.T, srvURL string, body map[string]any) map[string]any {
	t.Helper()
	resp := doJSON(t, "POST", srvURL+"/subscriptions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create subscription: expected 201, got %d", resp.StatusCode)
	}
	var sub map[string]any
	decodeBody(t, resp, &sub)
	return sub
}

// --- Subscriptions ---

func TestSubscriptions_CRUD(t *testing.T) {
	srv := testServer(t)

	// Create
	sub := createSub(t, srv.URL, map[string]any{
		"tenant_id":  "tenant-1",
		"name":       "order hook",
		"url":        "https://example.com/webhook",
		"event_type": "order.paid",
	})
	subID, ok := sub["id"].(string)
	if !ok || subID == "" {
		t.Fatal("expected non-empty subscription ID")
	}
	secret, _ := sub["secret"].(string)
	if !strings.HasPrefix(secret, "whsec_") {
		t.Fatalf("expected generated whsec_ secret, got %q", secret)
	}
	if sub["active"] != true {
		t.Fatal("expected subscription to be active")
	}
	if sub["event_type"] != "ORDER_PAID" {
		t.Fatalf("expected normalized event type, got %v", sub["event_type"])
	}

	// Get
	resp := doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// List
	resp = doJSON(t, "GET", srv.URL+"/subscriptions?tenant_id=tenant-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var subs []map[string]any
	decodeBody(t, resp, &subs)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/subscriptions/"+subID, map[string]any{
		"name": "renamed hook",
		"url":  "https://example.com/updated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["url"] != "https://example.com/updated" {
		t.Fatalf("expected updated URL, got %v", updated["url"])
	}

	// Pause
	resp = doJSON(t, "PATCH", srv.URL+"/subscriptions/"+subID+"/pause", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("pause: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Resume
	resp = doJSON(t, "PATCH", srv.URL+"/subscriptions/"+subID+"/resume", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("resume: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Rotate secret
	resp = doJSON(t, "POST", srv.URL+"/subscriptions/"+subID+"/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var secretResp map[string]string
	decodeBody(t, resp, &secretResp)
	if secretResp["secret"] == "" || secretResp["secret"] == secret {
		t.Fatalf("expected a fresh secret, got %q", secretResp["secret"])
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get deleted → 404
	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscriptions_CreateRejectsInsecureURL(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"tenant_id":  "tenant-1",
		"url":        "http://example.com/webhook",
		"event_type": "order.paid",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscriptions_DuplicateConflict(t *testing.T) {
	srv := testServer(t)

	body := map[string]any{
		"tenant_id":  "tenant-1",
		"url":        "https://example.com/webhook",
		"event_type": "order.paid",
	}
	createSub(t, srv.URL, body)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscriptions_ListRequiresTenantID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/subscriptions", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscriptions_Test(t *testing.T) {
	srv := testServer(t)

	sub := createSub(t, srv.URL, map[string]any{
		"tenant_id":  "tenant-1",
		"url":        "https://example.com/webhook",
		"event_type": "order.paid",
	})
	subID := sub["id"].(string)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions/"+subID+"/test", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("test: expected 202, got %d", resp.StatusCode)
	}
	var rec map[string]any
	decodeBody(t, resp, &rec)
	if rec["event_type"] != "TEST" {
		t.Fatalf("expected TEST record, got %v", rec["event_type"])
	}
	if rec["max_attempts"] != float64(1) {
		t.Fatalf("expected single-attempt record, got %v", rec["max_attempts"])
	}
}

// --- Installations ---

func TestInstallations_CRUD(t *testing.T) {
	srv := testServer(t)

	// Register
	resp := doJSON(t, "POST", srv.URL+"/installations", map[string]any{
		"tenant_id":      "tenant-1",
		"app_name":       "Acme Sync",
		"client_id":      "client_abc",
		"webhook_url":    "https://apps.example.com/hooks",
		"granted_scopes": []string{"READ_ORDERS"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	var inst map[string]any
	decodeBody(t, resp, &inst)
	instID, ok := inst["id"].(string)
	if !ok || instID == "" {
		t.Fatal("expected non-empty installation ID")
	}
	if inst["status"] != "active" {
		t.Fatalf("expected active installation, got %v", inst["status"])
	}

	// Get
	resp = doJSON(t, "GET", srv.URL+"/installations/"+instID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// List
	resp = doJSON(t, "GET", srv.URL+"/installations?tenant_id=tenant-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var insts []map[string]any
	decodeBody(t, resp, &insts)
	if len(insts) != 1 {
		t.Fatalf("expected 1 installation, got %d", len(insts))
	}

	// Revoke
	resp = doJSON(t, "DELETE", srv.URL+"/installations/"+instID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Revoked installations stay readable for audit.
	resp = doJSON(t, "GET", srv.URL+"/installations/"+instID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get revoked: expected 200, got %d", resp.StatusCode)
	}
	var revoked map[string]any
	decodeBody(t, resp, &revoked)
	if revoked["status"] != "revoked" {
		t.Fatalf("expected revoked status, got %v", revoked["status"])
	}
}

func TestInstallations_RegisterMissingFields(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/installations", map[string]any{
		"tenant_id": "tenant-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Events ---

func TestEvents_PublishAccepted(t *testing.T) {
	srv := testServer(t)

	sub := createSub(t, srv.URL, map[string]any{
		"tenant_id":  "tenant-1",
		"url":        "https://example.com/webhook",
		"event_type": "order.paid",
	})
	subID := sub["id"].(string)

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type":      "order.paid",
		"tenant_id": "tenant-1",
		"data":      map[string]any{"orderId": 42},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish: expected 202, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The ledger row is persisted before publish returns.
	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list deliveries: expected 200, got %d", resp.StatusCode)
	}
	var records []map[string]any
	decodeBody(t, resp, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 delivery record, got %d", len(records))
	}
}

func TestEvents_PublishValidation(t *testing.T) {
	srv := testServer(t)

	// Missing type
	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"tenant_id": "tenant-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing type, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Missing tenant_id
	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "order.paid",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing tenant_id, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown type
	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type":      "no.such.event",
		"tenant_id": "tenant-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEventTypes_List(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/event-types", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var types []map[string]any
	decodeBody(t, resp, &types)
	if len(types) == 0 {
		t.Fatal("expected a non-empty catalog")
	}

	byName := map[string]map[string]any{}
	for _, et := range types {
		byName[et["name"].(string)] = et
	}

	orderPaid := byName["ORDER_PAID"]
	if orderPaid == nil {
		t.Fatal("expected ORDER_PAID in the catalog")
	}
	if orderPaid["wire_name"] != "order.paid" {
		t.Fatalf("expected dotted wire name, got %v", orderPaid["wire_name"])
	}
	if orderPaid["required_scope"] != "READ_ORDERS" {
		t.Fatalf("expected READ_ORDERS scope, got %v", orderPaid["required_scope"])
	}

	appInstalled := byName["APP_INSTALLED"]
	if appInstalled == nil || appInstalled["lifecycle"] != true {
		t.Fatalf("expected APP_INSTALLED to be a lifecycle type, got %v", appInstalled)
	}
}

// --- Deliveries ---

func TestDeliveries_GetAndRetry(t *testing.T) {
	srv := testServer(t)

	sub := createSub(t, srv.URL, map[string]any{
		"tenant_id":  "tenant-1",
		"url":        "https://example.com/webhook",
		"event_type": "order.paid",
	})
	subID := sub["id"].(string)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions/"+subID+"/test", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("test send: expected 202, got %d", resp.StatusCode)
	}
	var rec map[string]any
	decodeBody(t, resp, &rec)
	recID := rec["id"].(string)
	eventID := rec["event_id"].(string)

	// Get by delivery ID
	resp = doJSON(t, "GET", srv.URL+"/deliveries/"+recID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get by event ID
	resp = doJSON(t, "GET", srv.URL+"/deliveries/by-event/"+eventID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by event: expected 200, got %d", resp.StatusCode)
	}
	var byEvent map[string]any
	decodeBody(t, resp, &byEvent)
	if byEvent["id"] != recID {
		t.Fatalf("event lookup returned the wrong record: %v", byEvent["id"])
	}

	// Tenant-wide list
	resp = doJSON(t, "GET", srv.URL+"/deliveries?tenant_id=tenant-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var records []map[string]any
	decodeBody(t, resp, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestDeliveries_ListRequiresTenantID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/deliveries", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeliveries_RetryUnknown(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/deliveries/del_000000000000000000000000000/retry", nil)
	// Either the ID fails to parse or the record does not exist.
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 400 or 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats_Endpoint(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var counts map[string]int
	decodeBody(t, resp, &counts)
}

// --- Invalid IDs ---

func TestSubscription_InvalidID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/subscriptions/not-a-valid-id", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDelivery_InvalidID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/deliveries/not-a-valid-id", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
