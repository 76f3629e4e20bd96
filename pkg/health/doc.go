// Package health provides endpoint probes: small composable checkers that
// answer "is this endpoint up" without knowing what the endpoint serves.
//
// Two checkers exist. HTTPChecker judges health from the status code of a
// probe request and backs readiness gates on provisioned endpoints that
// expose a health URL. TCPChecker dials and hangs up, which is the only
// portable probe for database and replication endpoints.
//
// Checkers report raw results; they do not decide when an endpoint is down.
// That verdict belongs to Status, which folds consecutive results through
// Config.Retries so one lost packet does not flip an endpoint. Callers own
// the probe cadence: the reconciler probes replication endpoints on its own
// cycle, and the saga's readiness wait probes inside its bounded retry loop.
package health
