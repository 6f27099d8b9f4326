// Package telemetry groups the proxy's observability packages.
//
// # Components
//
//   - logging: slog construction with secret redaction and request IDs
//   - metrics: Prometheus collectors for requests and upstream attempts
//   - tracing: OpenTelemetry spans around requests and upstream attempts
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.FromConfig(cfg.Telemetry.Logging)
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
package telemetry
