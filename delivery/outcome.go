package delivery

import "time"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Succeeded means the subscriber accepted the delivery (2xx).
	Succeeded Decision = iota

	// FailedPermanently means the subscriber rejected the delivery with
	// a client error that will not self-correct. No retry.
	FailedPermanently

	// RetryLater means a transient failure; another attempt is scheduled.
	RetryLater

	// GaveUp means the attempt budget or the retry window ran out.
	GaveUp
)

// Policy decides what happens to a record after an attempt.
type Policy struct {
	// RetryWindow bounds how long after TriggeredAt retries keep being
	// scheduled. Zero disables the window check.
	RetryWindow time.Duration
}

// Decide maps an attempt result to a decision.
//
// Decision matrix:
//   - 2xx → Succeeded
//   - 429 → retry (rate limited subscribers recover)
//   - 400–499 (except 429) → FailedPermanently
//   - 500–599 or no response (connection error, timeout) → retry
//
// A retry becomes GaveUp when the record has used its attempt budget or
// its retry window.
func (p Policy) Decide(res Result, rec *Record, now time.Time) Decision {
	code := res.StatusCode

	if code >= 200 && code < 300 {
		return Succeeded
	}

	if code >= 400 && code < 500 && code != 429 {
		return FailedPermanently
	}

	if rec.AttemptNumber >= rec.MaxAttempts {
		return GaveUp
	}
	if p.RetryWindow > 0 && now.Sub(rec.TriggeredAt) >= p.RetryWindow {
		return GaveUp
	}
	return RetryLater
}

// Backoff returns the delay before the attempt after attemptNumber:
// 2^attemptNumber minutes (2m, 4m, 8m, ...).
func Backoff(attemptNumber int) time.Duration {
	shift := attemptNumber
	if shift < 1 {
		shift = 1
	}
	if shift > 20 {
		shift = 20
	}
	return time.Duration(1<<uint(shift)) * time.Minute
}
