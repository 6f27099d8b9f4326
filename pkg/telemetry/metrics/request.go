package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ailife-hq/fortune-proxy/pkg/config"
)

// RequestMetrics tracks inbound proxy requests.
//
// Metrics:
//   - fortune_proxy_requests_total: requests by mode and outcome
//   - fortune_proxy_request_duration_seconds: end-to-end duration
//   - fortune_proxy_request_attempts: upstream attempts per request
//   - fortune_proxy_requests_in_flight: requests being served
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attempts        *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of fortune requests processed",
			},
			[]string{"mode", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of fortune requests in seconds, including retries",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"mode"},
		),

		attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_attempts",
				Help:      "Upstream attempts needed per request",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"mode"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of fortune requests currently being served",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.attempts,
		rm.inFlight,
	)

	return rm
}

// RecordRequest records a finished request.
func (rm *RequestMetrics) RecordRequest(mode, outcome string, attempts int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(mode, outcome).Inc()
	rm.requestDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if attempts > 0 {
		rm.attempts.WithLabelValues(mode).Observe(float64(attempts))
	}
}
