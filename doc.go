// Package hooks provides a composable event notification engine for
// multi-tenant platforms.
//
// Hooks is a library, not a service. Import it into your application to
// fan domain events out to tenant-configured webhook subscriptions and
// installed third-party apps, with signed payloads, a persistent
// delivery ledger, and exponential-backoff retries.
//
// Key features:
//   - Closed set of commerce event types with optional JSON Schema
//     validation on publish
//   - Scope-gated delivery to app installations
//   - HMAC-SHA256 signatures on every delivery, in two formats
//   - Full delivery history with manual retry and test sends
//   - Composable store pattern with multiple backends (Postgres, Bun,
//     SQLite, Redis, Mongo, Memory)
//   - Per-subscription rate limiting
//   - Forge-native with standalone fallback
//
// Quick start:
//
//	hub, err := hooks.New(
//	    hooks.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hub.Start(ctx)
//
//	hub.Publish(ctx, &event.Event{
//	    Type:     event.TypeOrderPaid,
//	    TenantID: "tenant_123",
//	    Data:     map[string]any{"orderId": 42},
//	})
package hooks
