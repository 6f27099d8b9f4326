package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ailife-hq/fortune-proxy/pkg/config"
)

// UpstreamMetrics tracks calls to the workflow API.
//
// Metrics:
//   - fortune_proxy_upstream_attempts_total: attempts by mode and result
//   - fortune_proxy_upstream_attempt_duration_seconds: per-attempt latency
//   - fortune_proxy_upstream_retries_total: retries by triggering error kind
//   - fortune_proxy_stream_frames_skipped_total: malformed stream frames
type UpstreamMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	framesSkipped   prometheus.Counter
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Total number of workflow API attempts",
			},
			[]string{"mode", "result"},
		),

		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempt_duration_seconds",
				Help:      "Duration of single workflow API attempts in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"mode"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_retries_total",
				Help:      "Retries scheduled, by the error kind that caused them",
			},
			[]string{"kind"},
		),

		framesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_frames_skipped_total",
				Help:      "Malformed stream frames that were skipped",
			},
		),
	}

	registry.MustRegister(
		um.attemptsTotal,
		um.attemptDuration,
		um.retriesTotal,
		um.framesSkipped,
	)

	return um
}

// RecordAttempt records one attempt.
func (um *UpstreamMetrics) RecordAttempt(mode, result string, duration time.Duration) {
	um.attemptsTotal.WithLabelValues(mode, result).Inc()
	um.attemptDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
