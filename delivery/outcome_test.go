package delivery_test

import (
	"testing"
	"time"

	"github.com/storekit/hooks/delivery"
)

func TestPolicyDecide(t *testing.T) {
	policy := delivery.Policy{RetryWindow: 72 * time.Hour}
	now := time.Now().UTC()

	tests := []struct {
		name   string
		result delivery.Result
		record *delivery.Record
		want   delivery.Decision
	}{
		{
			name:   "200 OK succeeds",
			result: delivery.Result{StatusCode: 200},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.Succeeded,
		},
		{
			name:   "201 Created succeeds",
			result: delivery.Result{StatusCode: 201},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.Succeeded,
		},
		{
			name:   "204 No Content succeeds",
			result: delivery.Result{StatusCode: 204},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.Succeeded,
		},
		{
			name:   "299 succeeds",
			result: delivery.Result{StatusCode: 299},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.Succeeded,
		},
		{
			name:   "400 Bad Request fails permanently",
			result: delivery.Result{StatusCode: 400},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.FailedPermanently,
		},
		{
			name:   "401 Unauthorized fails permanently",
			result: delivery.Result{StatusCode: 401},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.FailedPermanently,
		},
		{
			name:   "404 Not Found fails permanently",
			result: delivery.Result{StatusCode: 404},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.FailedPermanently,
		},
		{
			name:   "410 Gone fails permanently",
			result: delivery.Result{StatusCode: 410},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.FailedPermanently,
		},
		{
			name:   "429 Too Many Requests retries",
			result: delivery.Result{StatusCode: 429},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.RetryLater,
		},
		{
			name:   "500 Internal Server Error retries",
			result: delivery.Result{StatusCode: 500},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.RetryLater,
		},
		{
			name:   "503 Service Unavailable retries",
			result: delivery.Result{StatusCode: 503},
			record: &delivery.Record{AttemptNumber: 3, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.RetryLater,
		},
		{
			name:   "connection error retries",
			result: delivery.Result{StatusCode: 0, Error: "connection refused"},
			record: &delivery.Record{AttemptNumber: 1, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.RetryLater,
		},
		{
			name:   "500 gives up at attempt budget",
			result: delivery.Result{StatusCode: 500},
			record: &delivery.Record{AttemptNumber: 5, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.GaveUp,
		},
		{
			name:   "429 gives up at attempt budget",
			result: delivery.Result{StatusCode: 429},
			record: &delivery.Record{AttemptNumber: 5, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.GaveUp,
		},
		{
			name:   "timeout gives up at attempt budget",
			result: delivery.Result{StatusCode: 0, Error: "context deadline exceeded"},
			record: &delivery.Record{AttemptNumber: 5, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.GaveUp,
		},
		{
			name:   "500 gives up past the retry window",
			result: delivery.Result{StatusCode: 500},
			record: &delivery.Record{AttemptNumber: 2, MaxAttempts: 5, TriggeredAt: now.Add(-73 * time.Hour)},
			want:   delivery.GaveUp,
		},
		{
			name:   "2xx wins even at attempt budget",
			result: delivery.Result{StatusCode: 200},
			record: &delivery.Record{AttemptNumber: 5, MaxAttempts: 5, TriggeredAt: now},
			want:   delivery.Succeeded,
		},
		{
			name:   "4xx is permanent even past the window",
			result: delivery.Result{StatusCode: 422},
			record: &delivery.Record{AttemptNumber: 2, MaxAttempts: 5, TriggeredAt: now.Add(-73 * time.Hour)},
			want:   delivery.FailedPermanently,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.result, tt.record, now)
			if got != tt.want {
				t.Errorf("Decide() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPolicyZeroWindowDisablesWindowCheck(t *testing.T) {
	policy := delivery.Policy{}
	now := time.Now().UTC()

	rec := &delivery.Record{
		AttemptNumber: 1,
		MaxAttempts:   5,
		TriggeredAt:   now.Add(-1000 * time.Hour),
	}

	got := policy.Decide(delivery.Result{StatusCode: 500}, rec, now)
	if got != delivery.RetryLater {
		t.Errorf("expected RetryLater with zero window, got %d", got)
	}
}

func TestBackoffSchedule(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 16 * time.Minute},
		{5, 32 * time.Minute},
	}

	for _, tt := range tests {
		if got := delivery.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffClampsShift(t *testing.T) {
	// Below 1 clamps to the first step.
	if got := delivery.Backoff(0); got != 2*time.Minute {
		t.Errorf("Backoff(0) = %v, want 2m", got)
	}
	if got := delivery.Backoff(-3); got != 2*time.Minute {
		t.Errorf("Backoff(-3) = %v, want 2m", got)
	}

	// Large attempt numbers stop doubling instead of overflowing.
	if got := delivery.Backoff(100); got != delivery.Backoff(20) {
		t.Errorf("Backoff(100) = %v, want %v", got, delivery.Backoff(20))
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []delivery.Status{delivery.StatusSuccess, delivery.StatusFailed, delivery.StatusExhausted}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	live := []delivery.Status{delivery.StatusPending, delivery.StatusSending, delivery.StatusRetrying}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRecordDue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		record delivery.Record
		want   bool
	}{
		{"pending with no schedule", delivery.Record{Status: delivery.StatusPending}, true},
		{"retrying past due", delivery.Record{Status: delivery.StatusRetrying, NextRetryAt: &past}, true},
		{"retrying not yet due", delivery.Record{Status: delivery.StatusRetrying, NextRetryAt: &future}, false},
		{"sending never due", delivery.Record{Status: delivery.StatusSending}, false},
		{"success never due", delivery.Record{Status: delivery.StatusSuccess}, false},
		{"exhausted never due", delivery.Record{Status: delivery.StatusExhausted, NextRetryAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Due(now); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}
