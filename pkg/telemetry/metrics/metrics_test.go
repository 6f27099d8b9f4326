package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ailife-hq/fortune-proxy/pkg/config"
)

func testConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Namespace:              "test",
		Subsystem:              "metrics",
		RequestDurationBuckets: []float64{0.1, 1, 10},
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRequest("sync", "success", 1, 2*time.Second)
	collector.RecordRequest("sync", "success", 4, 9*time.Second)
	collector.RecordRequest("stream", "timeout", 4, time.Minute)

	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("sync", "success")); got != 2 {
		t.Errorf("sync successes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("stream", "timeout")); got != 1 {
		t.Errorf("stream timeouts = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.requestMetrics.requestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_Upstream(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.ObserveAttempt("sync", "gateway_error", time.Second)
	collector.ObserveAttempt("sync", "success", time.Second)
	collector.RecordRetry("gateway_error")
	collector.ObserveSkippedFrame()
	collector.ObserveSkippedFrame()

	if got := testutil.ToFloat64(collector.upstreamMetrics.attemptsTotal.WithLabelValues("sync", "gateway_error")); got != 1 {
		t.Errorf("gateway attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.upstreamMetrics.retriesTotal.WithLabelValues("gateway_error")); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.upstreamMetrics.framesSkipped); got != 2 {
		t.Errorf("skipped frames = %v, want 2", got)
	}
}

func TestCollector_InFlight(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RequestStarted()
	collector.RequestStarted()
	collector.RequestFinished()

	if got := testutil.ToFloat64(collector.requestMetrics.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Enabled = &disabled
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("sync", "success", 1, time.Second)
	collector.ObserveSkippedFrame()

	if collector.Enabled() {
		t.Error("expected collector to be disabled")
	}
	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("sync", "success")); got != 0 {
		t.Errorf("disabled collector recorded %v requests", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordRequest("sync", "success", 1, time.Second)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"test_metrics_requests_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}
