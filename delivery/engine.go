package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/observability"
	"github.com/storekit/hooks/ratelimit"
	"github.com/storekit/hooks/subscription"
)

// EngineStore is the interface the engine needs: the ledger plus target
// resolution.
type EngineStore interface {
	Store
	GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error)
	GetInstallation(ctx context.Context, instID id.ID) (*installation.Installation, error)
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	SweepInterval  time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	RetryWindow    time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine drives deliveries: fresh records are dispatched immediately, and
// a sweep loop redrives records whose retry time has come. Both paths
// claim a record (CAS to sending) before touching it, so a record is
// never attempted twice concurrently.
type Engine struct {
	store   EngineStore
	sender  *Sender
	policy  Policy
	limiter *ratelimit.Limiter
	config  EngineConfig
	logger  *slog.Logger

	sem    chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, limiter *ratelimit.Limiter, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Engine{
		store:   store,
		sender:  NewSender(cfg.RequestTimeout),
		policy:  Policy{RetryWindow: cfg.RetryWindow},
		limiter: limiter,
		config:  cfg,
		logger:  logger,
		sem:     make(chan struct{}, cfg.Concurrency),
	}
}

// Start begins the sweep loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sweepLoop(ctx)
	}()
}

// Stop cancels the sweep loop and waits for in-flight deliveries.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Dispatch claims a freshly persisted record and attempts it on a worker
// goroutine. Records already claimed elsewhere are skipped silently; the
// sweep owns them. Dispatch returns as soon as the claim lands: waiting
// for a free worker slot happens on the spawned goroutine, so a publisher
// fanning out past the concurrency cap never blocks on subscriber I/O.
func (e *Engine) Dispatch(ctx context.Context, recID id.ID) {
	rec, ok, err := e.store.ClaimDelivery(ctx, recID)
	if err != nil {
		e.logger.ErrorContext(ctx, "claim delivery failed", "delivery_id", recID, "error", err)
		return
	}
	if !ok {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case <-ctx.Done():
			// Shutting down: release the claim so the sweep redrives it.
			rec.Status = StatusPending
			if err := e.store.UpdateDelivery(context.WithoutCancel(ctx), rec); err != nil {
				e.logger.ErrorContext(ctx, "release claim failed", "delivery_id", rec.ID, "error", err)
			}
			return
		case e.sem <- struct{}{}:
		}
		defer func() { <-e.sem }()

		e.process(ctx, rec)
	}()
}

// sweepLoop periodically claims due records and redrives them.
func (e *Engine) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.ClaimDue(ctx, time.Now().UTC(), e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "claim due deliveries failed", "error", err)
				continue
			}

			for _, rec := range batch {
				select {
				case <-ctx.Done():
					return
				case e.sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(r *Record) {
					defer e.wg.Done()
					defer func() { <-e.sem }()
					e.process(ctx, r)
				}(rec)
			}
		}
	}
}

// process handles one claimed record: resolve the target, send, decide,
// write the outcome back.
func (e *Engine) process(ctx context.Context, rec *Record) {
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, rec.ID.String(), rec.EventID.String(), string(rec.EventType))
	}

	target, err := e.resolveTarget(ctx, rec)
	if err != nil {
		// The subscriber vanished between publish and attempt. The
		// record can never complete; fail it rather than respin.
		e.logger.ErrorContext(ctx, "resolve delivery target failed",
			"delivery_id", rec.ID, "kind", rec.Kind, "error", err)
		now := time.Now().UTC()
		rec.Status = StatusFailed
		rec.ErrorMessage = "subscriber no longer exists: " + err.Error()
		rec.NextRetryAt = nil
		rec.UpdatedAt = now
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, rec.ErrorMessage)
		}
		e.finish(ctx, rec, "failed", 0)
		return
	}

	if e.limiter != nil && rec.Kind == KindWebhook {
		if err := e.limiter.Wait(ctx, rec.SubscriptionID.String(), target.RateLimit); err != nil {
			// Shutdown mid-wait: release the claim for the next sweep.
			rec.Status = StatusPending
			if span != nil {
				e.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
			}
			if updateErr := e.store.UpdateDelivery(context.WithoutCancel(ctx), rec); updateErr != nil {
				e.logger.ErrorContext(ctx, "release claim failed", "delivery_id", rec.ID, "error", updateErr)
			}
			return
		}
	}

	result := e.sender.Send(ctx, target, rec)

	rec.ResponseStatus = result.StatusCode
	rec.ResponseBody = result.Response
	rec.ErrorMessage = result.Error
	rec.DurationMs = result.DurationMs

	now := time.Now().UTC()
	latencySeconds := float64(result.DurationMs) / 1000.0

	var metricStatus string
	switch e.policy.Decide(result, rec, now) {
	case Succeeded:
		rec.Status = StatusSuccess
		rec.DeliveredAt = &now
		rec.NextRetryAt = nil
		metricStatus = "success"
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", rec.ID, "status", result.StatusCode, "duration_ms", result.DurationMs)

	case FailedPermanently:
		rec.Status = StatusFailed
		rec.NextRetryAt = nil
		metricStatus = "failed"
		e.logger.WarnContext(ctx, "delivery rejected",
			"delivery_id", rec.ID, "status", result.StatusCode)

	case RetryLater:
		next := now.Add(Backoff(rec.AttemptNumber))
		rec.Status = StatusRetrying
		rec.NextRetryAt = &next
		rec.AttemptNumber++
		metricStatus = "retrying"
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", rec.ID, "attempt", rec.AttemptNumber, "next_at", next)

	case GaveUp:
		rec.Status = StatusExhausted
		rec.NextRetryAt = nil
		metricStatus = "exhausted"
		e.logger.WarnContext(ctx, "delivery exhausted",
			"delivery_id", rec.ID, "attempts", rec.AttemptNumber,
			"status", result.StatusCode, "error", result.Error)
	}
	rec.UpdatedAt = now

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, rec.ResponseStatus, rec.DurationMs, rec.ErrorMessage)
	}

	e.finish(ctx, rec, metricStatus, latencySeconds)
}

func (e *Engine) finish(ctx context.Context, rec *Record, metricStatus string, latencySeconds float64) {
	if e.config.Metrics != nil {
		e.config.Metrics.RecordDelivery(metricStatus, latencySeconds)
		if rec.Status.Terminal() {
			e.config.Metrics.PendingDeliveries.Dec()
		}
	}

	// The outcome is written even when shutdown cancelled the context
	// mid-attempt; losing it would re-send a completed delivery.
	if err := e.store.UpdateDelivery(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.ErrorContext(ctx, "update delivery failed", "delivery_id", rec.ID, "error", err)
	}
}

// resolveTarget looks the subscriber up at attempt time so secret
// rotation and custom-header edits apply to the next attempt. The
// destination URL stays pinned to the one captured at publish time.
func (e *Engine) resolveTarget(ctx context.Context, rec *Record) (Target, error) {
	switch rec.Kind {
	case KindApp:
		inst, err := e.store.GetInstallation(ctx, rec.InstallationID)
		if err != nil {
			return Target{}, err
		}
		return Target{
			URL:      rec.URL,
			Secret:   inst.Secret,
			Kind:     KindApp,
			ClientID: inst.ClientID,
		}, nil

	default:
		sub, err := e.store.GetSubscription(ctx, rec.SubscriptionID)
		if err != nil {
			return Target{}, err
		}
		return Target{
			URL:       rec.URL,
			Secret:    sub.Secret,
			Kind:      KindWebhook,
			RateLimit: sub.RateLimit,
			Headers:   sub.Headers,
		}, nil
	}
}
