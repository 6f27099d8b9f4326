package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ailife-hq/fortune-proxy/internal/workflowtest"
	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/proxy/middleware"
	"ailife-hq/fortune-proxy/pkg/telemetry/health"
	"ailife-hq/fortune-proxy/pkg/telemetry/metrics"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

const birthJSON = `{"name":"A","gender":"male","birth_place":"X","year":1990,"month":5,"day":15,"hour":14,"minute":30,"second":0}`

type testEnv struct {
	upstream  *workflowtest.Server
	server    *Server
	collector *metrics.Collector
	checker   *health.Checker
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	upstream := workflowtest.NewServer()
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Proxy.ListenAddress = "127.0.0.1:0"
	cfg.Proxy.ShutdownTimeout = 2 * time.Second
	cfg.Upstream.BaseURL = upstream.URL()
	cfg.Upstream.WorkflowID = "wf-test"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := workflow.StaticToken(token)
	client, err := workflow.NewClient(workflow.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		WorkflowID:    cfg.Upstream.WorkflowID,
		Credentials:   creds,
		SyncTimeout:   5 * time.Second,
		StreamTimeout: 5 * time.Second,
		Logger:        logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, prometheus.NewRegistry())
	forwarder := proxy.NewForwarder(proxy.ForwarderOptions{
		Runner:      client,
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		Logger:      logger,
		Recorder:    collector,
	})

	checker := health.New(time.Second)
	RegisterReadinessChecks(checker, cfg, creds)

	srv := NewServer(Options{
		Config:    cfg,
		Forwarder: forwarder,
		Health:    checker,
		Metrics:   collector,
		Logger:    logger,
		Build:     BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-01-01"},
	})
	return &testEnv{upstream: upstream, server: srv, collector: collector, checker: checker}
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Routes(t *testing.T) {
	env := newTestEnv(t, "t")
	env.upstream.Enqueue(workflowtest.SyncPath, workflowtest.SyncSuccess(map[string]any{"output": "hello"}))
	h := env.server.Handler()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"fortune", http.MethodPost, "/api/coze-workflow", birthJSON, http.StatusOK, `"fortune_content":"hello"`},
		{"health", http.MethodGet, "/health", "", http.StatusOK, `"status":"ok"`},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK, `"status":"ready"`},
		{"version", http.MethodGet, "/version", "", http.StatusOK, `"version":"1.2.3"`},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK, "fortune_proxy_"},
		{"unknown", http.MethodGet, "/nope", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, tt.method, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}
}

func TestHandler_RequestIDInEnvelope(t *testing.T) {
	env := newTestEnv(t, "t")
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/coze-workflow", strings.NewReader(`{}`))
	req.Header.Set(middleware.RequestIDHeader, "client-id-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["request_id"] != "client-id-42" {
		t.Errorf("request_id = %v", body["request_id"])
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandler_Preflight(t *testing.T) {
	env := newTestEnv(t, "t")
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/coze-workflow", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestHandler_NotReadyWithoutToken(t *testing.T) {
	env := newTestEnv(t, "")
	rec := serve(t, env.server.Handler(), http.MethodGet, "/ready", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "credentials") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	env := newTestEnv(t, "t")
	disabled := false
	env.server.opts.Config.Telemetry.Metrics.Enabled = &disabled
	env.server.opts.Metrics = metrics.NewCollector(env.server.opts.Config.Telemetry.Metrics, prometheus.NewRegistry())

	rec := serve(t, env.server.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	env := newTestEnv(t, "t")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.server.Start(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := env.server.Addr(); a != nil {
			addr = a.String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server did not start")
	}
	if !env.server.IsRunning() {
		t.Error("IsRunning = false after start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	if err := env.server.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if env.server.IsRunning() {
		t.Error("IsRunning = true after shutdown")
	}
}

func TestServer_Stop(t *testing.T) {
	env := newTestEnv(t, "t")

	done := make(chan error, 1)
	go func() { done <- env.server.Start(context.Background()) }()

	for i := 0; i < 200 && env.server.Addr() == nil; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	env.server.Stop()
	env.server.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_StartListenError(t *testing.T) {
	env := newTestEnv(t, "t")
	env.server.opts.Config.Proxy.ListenAddress = "256.0.0.1:bad"

	if err := env.server.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded on an invalid address")
	}
	if env.server.IsRunning() {
		t.Error("IsRunning = true after failed start")
	}
}

func TestShutdown_NotRunning(t *testing.T) {
	env := newTestEnv(t, "t")
	if err := env.server.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown = %v", err)
	}
}

func TestChecks(t *testing.T) {
	cfg := config.Default()
	if err := ConfigCheck(cfg)(context.Background()); err == nil {
		t.Error("ConfigCheck passed without workflow_id")
	}
	cfg.Upstream.WorkflowID = "wf"
	if err := ConfigCheck(cfg)(context.Background()); err != nil {
		t.Errorf("ConfigCheck = %v", err)
	}

	if err := CredentialsCheck(nil)(context.Background()); err == nil {
		t.Error("CredentialsCheck passed with nil credentials")
	}
	err := CredentialsCheck(workflow.StaticToken("secret-value"))(context.Background())
	if err != nil {
		t.Errorf("CredentialsCheck = %v", err)
	}
	err = CredentialsCheck(workflow.StaticToken(""))(context.Background())
	if err == nil || errors.Unwrap(err) == nil {
		t.Errorf("CredentialsCheck(empty) = %v", err)
	}
}
