// Package store defines the composite Store interface for all hooks
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all, so a backend implements one surface and the facade
// wires one value everywhere.
package store

import (
	"context"

	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/subscription"
)

// Store is the aggregate persistence interface.
type Store interface {
	subscription.Store
	installation.Store
	delivery.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
