package hooks

import "time"

// Config holds the configuration for a Hub instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// SweepInterval is how often the engine redrives due retries.
	SweepInterval time.Duration

	// BatchSize is the maximum number of records claimed per sweep.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxRetries is the default attempt budget per delivery record.
	// Subscriptions can override it per-subscription.
	MaxRetries int

	// RetryWindow bounds how long after the triggering publish retries
	// keep being scheduled.
	RetryWindow time.Duration

	// APIVersion stamps envelopes for subscribers that do not pin one.
	APIVersion string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		SweepInterval:  30 * time.Second,
		BatchSize:      50,
		RequestTimeout: 15 * time.Second,
		MaxRetries:     5,
		RetryWindow:    72 * time.Hour,
		APIVersion:     "v1",
	}
}
