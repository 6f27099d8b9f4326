// Package server provides the HTTP server that fronts the fortune workflow.
//
// It ties the fortune handler, health probes and the metrics endpoint
// together behind the shared middleware chain and manages the listener
// lifecycle, including graceful shutdown on SIGINT and SIGTERM.
//
// # Routes
//
//   - POST <proxy.path> - submit birth data (default /api/coze-workflow)
//   - GET /health - liveness probe, always 200 while the process runs
//   - GET /ready - readiness probe, 503 until every check passes
//   - GET /version - build information
//   - GET <metrics.path> - Prometheus exposition, when metrics are enabled
//
// # Middleware Chain
//
// From outermost to innermost:
//  1. Tracing: server span and X-Trace-ID header
//  2. Recovery: turns panics into a 500 envelope
//  3. RequestID: assigns or propagates X-Request-ID
//  4. Logging: one access log line per request
//  5. InFlight: in-flight request gauge
//  6. CORS: cross-origin headers and preflight answers
//
// # Graceful Shutdown
//
// Start blocks until its context is cancelled, a signal arrives or the
// listener fails. Shutdown stops accepting connections and waits up to
// proxy.shutdown_timeout for running calls, which may include several
// upstream attempts, to finish.
package server
