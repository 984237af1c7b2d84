package hooks

import (
	"log/slog"
	"time"

	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/observability"
	"github.com/storekit/hooks/ratelimit"
	"github.com/storekit/hooks/store"
	"github.com/storekit/hooks/subscription"
)

// Hub is the root event notification engine.
type Hub struct {
	config          Config
	store           store.Store
	validator       *capability.Validator
	subscriptionSvc *subscription.Service
	installationSvc *installation.Service
	engine          *delivery.Engine
	limiter         *ratelimit.Limiter
	metrics         *observability.Metrics
	tracer          *observability.Tracer
	logger          *slog.Logger
}

// Option configures a Hub instance.
type Option func(*Hub) error

// New creates a new Hub with the given options.
func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	h.wireServices()
	return h, nil
}

// WithStore sets the persistence backend for the Hub instance.
func WithStore(s store.Store) Option {
	return func(h *Hub) error {
		h.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Hub instance.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) error {
		h.logger = logger
		return nil
	}
}

// WithMetrics sets the metric instruments recorded by the Hub.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) error {
		h.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used to span delivery attempts.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Hub) error {
		h.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(h *Hub) error {
		h.config.Concurrency = n
		return nil
	}
}

// WithSweepInterval sets how often the engine redrives due retries.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.SweepInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of records claimed per sweep.
func WithBatchSize(n int) Option {
	return func(h *Hub) error {
		h.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithMaxRetries sets the default attempt budget per delivery record.
func WithMaxRetries(n int) Option {
	return func(h *Hub) error {
		h.config.MaxRetries = n
		return nil
	}
}

// WithRetryWindow bounds how long after the triggering publish retries
// keep being scheduled.
func WithRetryWindow(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.RetryWindow = d
		return nil
	}
}

// WithAPIVersion sets the envelope apiVersion for subscribers that do
// not pin one.
func WithAPIVersion(v string) Option {
	return func(h *Hub) error {
		h.config.APIVersion = v
		return nil
	}
}
