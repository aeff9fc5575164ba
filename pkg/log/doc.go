/*
Package log provides structured logging for igor using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Component loggers:

	logger := log.WithComponent("server")
	logger.Info().Str("addr", addr).Msg("listening")

Order-scoped loggers:

	logger := log.WithOrderID(order.ID)
	logger.Debug().Msg("order assigned")

# Integration Points

This package integrates with:

  - pkg/server: connection and dispatch logging
  - pkg/worker: build lifecycle logging
  - pkg/build: executor and push-loop logging
  - cmd/igor: --log-level and --log-json flags
*/
package log
