// Package middleware provides the HTTP middleware wrapped around every
// route of the proxy.
//
// The chain, outermost first:
//
//	handler = Recovery(RequestID(Logging(InFlight(CORS(handler)))))
//
//   - Recovery turns a panic into a 500 envelope.
//   - RequestID accepts or generates X-Request-ID (UUID v4) and stores it
//     in the context, where the logging handler picks it up.
//   - Logging writes one line per request with status and latency.
//   - InFlight tracks concurrent requests for metrics.
//   - CORS emits the configured headers and answers preflight requests
//     with 200 and an empty body.
//
// No per-request timeout is applied here. The upstream client enforces a
// deadline on each attempt.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
