// Package tracing configures OpenTelemetry for the proxy.
//
// When tracing is disabled, New returns a Tracer backed by the no-op
// provider, so callers never need to check whether tracing is on. When it
// is enabled, spans are exported over OTLP/gRPC in batches and the W3C
// trace context propagator is installed globally, which lets an inbound
// traceparent header flow through to the upstream workflow request.
//
// Usage:
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracing.HTTPMiddleware(tracer, handler)
package tracing
