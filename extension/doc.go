// Package extension provides the Forge extension for mounting the hooks engine.
//
// The extension integrates the hub into the Forge application framework by:
//   - Initializing the hub with a configured store
//   - Running database migrations on registration
//   - Mounting admin API routes with OpenAPI metadata under a configurable prefix
//   - Starting the delivery engine on application start
//   - Gracefully stopping the engine on application shutdown
//   - Providing health checks via store.Ping
//
// Usage:
//
//	app := forge.New(
//	    forge.WithExtensions(
//	        extension.New(
//	            extension.WithStore(postgresStore),
//	            extension.WithPrefix("/hooks"),
//	        ),
//	    ),
//	)
//	app.Run()
package extension
