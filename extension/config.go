package extension

import (
	hooks "github.com/storekit/hooks"
)

// Config holds configuration for the hooks Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.hooks" or "hooks" keys).
type Config struct {
	// Config embeds the core hub configuration.
	hooks.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all admin API routes (default: "/hooks").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables automatic database migration on Register.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// GroveKV is the name of a grove kv.Store registered in the DI container.
	// When set, the extension resolves this named KV store and auto-constructs
	// a Redis-backed store. When empty and WithGroveKV was called, the default
	// (unnamed) kv.Store is used.
	GroveKV string `json:"grove_kv" mapstructure:"grove_kv" yaml:"grove_kv"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   hooks.DefaultConfig(),
		BasePath: "/hooks",
	}
}

// ToHubOptions converts the embedded Config into hooks.Option values.
func (c Config) ToHubOptions() []hooks.Option {
	var opts []hooks.Option

	if c.Concurrency > 0 {
		opts = append(opts, hooks.WithConcurrency(c.Concurrency))
	}
	if c.SweepInterval > 0 {
		opts = append(opts, hooks.WithSweepInterval(c.SweepInterval))
	}
	if c.BatchSize > 0 {
		opts = append(opts, hooks.WithBatchSize(c.BatchSize))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, hooks.WithRequestTimeout(c.RequestTimeout))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, hooks.WithMaxRetries(c.MaxRetries))
	}
	if c.RetryWindow > 0 {
		opts = append(opts, hooks.WithRetryWindow(c.RetryWindow))
	}
	if c.APIVersion != "" {
		opts = append(opts, hooks.WithAPIVersion(c.APIVersion))
	}

	return opts
}
