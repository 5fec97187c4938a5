// Package app wires the chemvis server together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Initialize OpenTelemetry and the dataset instruments
//	2. Open the dataset store selected by storage.driver
//	3. Create the websocket hub (unless disabled) and the services
//	4. Build the chi router and the HTTP server
//
// # Usage
//
//	application, err := app.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns once ctx is cancelled or SIGINT/SIGTERM arrives. In-flight
// requests are drained within server.shutdown_timeout, websocket subscribers
// receive a going-away close frame, the store is closed and pending metrics
// are flushed.
//
// The app never calls os.Exit; main decides the exit code.
package app
