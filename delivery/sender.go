package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/storekit/hooks/signature"
)

const (
	// maxResponseBody is the stored response body cap, in bytes.
	maxResponseBody = 1000

	truncationMarker = "... (truncated)"

	userAgent = "storekit-hooks/1.0"
)

// Target is everything the sender needs to reach one subscriber. The
// engine builds it from the subscription or installation at attempt time
// so secret rotation takes effect on the next attempt.
type Target struct {
	URL    string
	Secret string
	Kind   Kind

	// ClientID is sent as X-App-Client-Id on app deliveries.
	ClientID string

	// RateLimit is the subscription's requests-per-second cap, 0 for
	// unlimited. App deliveries are not rate limited.
	RateLimit int

	// Headers are subscriber-configured extras. They are applied last
	// and may override the platform headers.
	Headers map[string]string
}

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	DurationMs int
}

// Sender performs one HTTP webhook attempt.
type Sender struct {
	client *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Send POSTs the record's payload to the target and returns the result.
// The signed content is "{unixSeconds}.{payload}"; webhook subscriptions
// get the sha256= signature format, app installations the t=,v1= format
// plus their client ID.
func (s *Sender) Send(ctx context.Context, target Target, rec *Record) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(rec.Payload))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	ts := s.now().Unix()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Event", rec.EventType.Dotted())
	req.Header.Set("X-Webhook-Id", rec.EventID.String())
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ts, 10))

	switch target.Kind {
	case KindApp:
		req.Header.Set("X-Webhook-Signature", signature.SignLegacy(rec.Payload, target.Secret, ts))
		req.Header.Set("X-App-Client-Id", target.ClientID)
	default:
		req.Header.Set("X-Webhook-Signature", signature.Sign(rec.Payload, target.Secret, ts))
	}

	// Subscriber headers win over platform headers.
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: the URL is a subscriber-configured webhook destination.
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:      err.Error(),
			DurationMs: int(duration),
		}
	}
	defer resp.Body.Close()

	// Read one byte past the cap to know whether to mark truncation.
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			DurationMs: int(duration),
		}
	}

	body := string(respBody)
	if len(body) > maxResponseBody {
		body = body[:maxResponseBody] + truncationMarker
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   body,
		DurationMs: int(duration),
	}
}
