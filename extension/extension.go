package extension

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/api"
)

// Extension is the Forge extension for the hooks engine.
type Extension struct {
	config Config
	opts   []hooks.Option
	hub    *hooks.Hub
	logger *slog.Logger
}

// New creates a new hooks Forge extension.
func New(opts ...ExtOption) *Extension {
	ext := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ext)
	}
	return ext
}

// Register initializes the hub and runs migrations. It must be called before
// Start or RegisterRoutes.
func (ext *Extension) Register(ctx context.Context) error {
	hubOpts := append(ext.config.ToHubOptions(), ext.opts...)
	hubOpts = append(hubOpts, hooks.WithLogger(ext.logger))

	hub, err := hooks.New(hubOpts...)
	if err != nil {
		return fmt.Errorf("extension: create hub: %w", err)
	}
	ext.hub = hub

	if !ext.config.DisableMigrate {
		if err := hub.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("extension: migrate: %w", err)
		}
	}

	return nil
}

// Start starts the delivery engine.
func (ext *Extension) Start(ctx context.Context) error {
	if ext.hub == nil {
		return fmt.Errorf("extension: Register must be called before Start")
	}
	ext.hub.Start(ctx)
	return nil
}

// Stop drains in-flight deliveries and shuts the engine down.
func (ext *Extension) Stop(ctx context.Context) error {
	if ext.hub == nil {
		return nil
	}
	ext.hub.Stop(ctx)
	return nil
}

// RegisterRoutes mounts the admin API routes into the given Forge router with
// full OpenAPI metadata. It is a no-op when DisableRoutes is set.
func (ext *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if ext.config.DisableRoutes || ext.hub == nil {
		return
	}
	api.NewForgeAPI(ext.hub, log).RegisterRoutes(router)
}

// Handler creates the plain net/http admin API handler. This can be used
// standalone without Forge integration.
func (ext *Extension) Handler() http.Handler {
	return api.NewHandler(ext.hub, ext.logger)
}

// HealthCheck reports store connectivity.
func (ext *Extension) HealthCheck(ctx context.Context) error {
	if ext.hub == nil {
		return fmt.Errorf("extension: not registered")
	}
	return ext.hub.Store().Ping(ctx)
}

// Hub returns the underlying hub, or nil before Register.
func (ext *Extension) Hub() *hooks.Hub { return ext.hub }

// Prefix returns the configured URL prefix for admin routes.
func (ext *Extension) Prefix() string { return ext.config.BasePath }
