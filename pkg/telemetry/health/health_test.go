package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNew_DefaultTimeout(t *testing.T) {
	if got := New(0).checkTimeout; got != DefaultCheckTimeout {
		t.Errorf("checkTimeout = %v, want %v", got, DefaultCheckTimeout)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"config":      func(context.Context) error { return nil },
				"credentials": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"config":      func(context.Context) error { return nil },
				"credentials": func(context.Context) error { return errors.New("token missing") },
			},
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.Readiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestReadiness_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.Readiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("result = %+v, want timeout", result)
	}
}

func TestNames(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("upstream", func(context.Context) error { return nil })
	checker.RegisterCheck("config", func(context.Context) error { return nil })

	if diff := cmp.Diff([]string{"config", "upstream"}, checker.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlers(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("credentials", func(context.Context) error { return errors.New("no token") })

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		wantCode int
	}{
		{"liveness", checker.LivenessHandler(), http.MethodGet, http.StatusOK},
		{"liveness head", checker.LivenessHandler(), http.MethodHead, http.StatusOK},
		{"readiness degraded", checker.ReadinessHandler(), http.MethodGet, http.StatusServiceUnavailable},
		{"version", VersionHandler("1.0.0", "abc", "now"), http.MethodGet, http.StatusOK},
		{"wrong method", checker.LivenessHandler(), http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
		})
	}
}

func TestVersionHandler_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "deadbeef", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.Commit != "deadbeef" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
