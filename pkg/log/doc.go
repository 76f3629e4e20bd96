/*
Package log provides structured logging for Strata using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initialize the global logger once at process start:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true, // console writer when false
	})

Components create child loggers carrying a stable component field:

	logger := log.WithComponent("scheduler")
	logger.Info().Str("tier", "medium").Float64("score", 0.8125).Msg("Placement selected")

Entity-scoped helpers attach the identifiers that matter when tracing a
request across components:

	log.WithSagaID(saga.ID).Info().Str("step", "apply_claim").Msg("Step completed")
	log.WithPlacementID(rec.ID).Warn().Msg("Placement stuck in provisioning")
	log.WithProvider("aws").Error().Err(err).Msg("Breaker opened")

# Output Formats

JSON output (production):

	{"level":"info","component":"scheduler","tier":"medium","time":"2026-03-01T10:00:00Z","message":"Placement selected"}

Console output (development) renders the same events human-readably with
RFC3339 timestamps.

# Levels

debug, info, warn, error. The level is global; events below it are dropped at
the call site by zerolog with near-zero cost.

# See Also

  - pkg/metrics - Prometheus counters and gauges
  - pkg/events - control plane event broker for subscribers
*/
package log
