// Package metrics exposes Prometheus metrics for the proxy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ailife-hq/fortune-proxy/pkg/config"
)

// Collector owns the metrics registry. It implements workflow.Observer so
// the upstream client can report attempts directly.
//
// All methods are safe for concurrent use and are no-ops when metrics are
// disabled.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry
	enabled  bool

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
}

// NewCollector creates a collector with its own registry. If registry is
// nil a new one is created; Go runtime and process collectors are
// registered on it.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		enabled:         cfg.IsEnabled(),
		requestMetrics:  NewRequestMetrics(cfg, registry),
		upstreamMetrics: NewUpstreamMetrics(cfg, registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// RecordRequest records one finished inbound request.
//
// Parameters:
//   - mode: upstream transport ("sync" or "stream")
//   - outcome: "success" or the error kind that ended the call
//   - attempts: number of upstream attempts made
//   - duration: total time spent serving the request
func (c *Collector) RecordRequest(mode, outcome string, attempts int, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.requestMetrics.RecordRequest(mode, outcome, attempts, duration)
}

// ObserveAttempt records one upstream attempt.
func (c *Collector) ObserveAttempt(mode, result string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.RecordAttempt(mode, result, duration)
}

// ObserveSkippedFrame counts a malformed stream frame.
func (c *Collector) ObserveSkippedFrame() {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.framesSkipped.Inc()
}

// RecordRetry counts a retry scheduled after a failure of the given kind.
func (c *Collector) RecordRetry(kind string) {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.retriesTotal.WithLabelValues(kind).Inc()
}

// RequestStarted and RequestFinished track in-flight requests.
func (c *Collector) RequestStarted() {
	if c.enabled {
		c.requestMetrics.inFlight.Inc()
	}
}

func (c *Collector) RequestFinished() {
	if c.enabled {
		c.requestMetrics.inFlight.Dec()
	}
}
