package extension

import (
	"log/slog"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/store"
)

// ExtOption configures the hooks Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend via a hub option.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, hooks.WithStore(s))
	}
}

// WithPrefix sets the URL prefix for all admin API routes.
func WithPrefix(prefix string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithHubOption appends a raw hooks.Option to the extension.
func WithHubOption(opt hooks.Option) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithLogger sets the slog logger used by the hub and the plain HTTP handler.
func WithLogger(logger *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrations disables automatic database migration on Register.
func WithDisableMigrations() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
