package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:8080"
  read_timeout: "60s"

upstream:
  workflow_id: "7500000000000000001"
  token: "${secret:workflow-token}"
  mode: "stream"
  max_retries: 5

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:8080" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:8080", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Proxy.ReadTimeout)
	}
	if cfg.Upstream.Mode != ModeStream {
		t.Errorf("expected mode %q, got %q", ModeStream, cfg.Upstream.Mode)
	}
	if cfg.Upstream.MaxRetries != 5 {
		t.Errorf("expected max retries 5, got %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Upstream.Token != "${secret:workflow-token}" {
		t.Errorf("expected token reference to be kept verbatim, got %q", cfg.Upstream.Token)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}

	// Defaults fill the rest.
	if cfg.Upstream.SyncTimeout != DefaultUpstreamSyncTimeout {
		t.Errorf("expected sync timeout %v, got %v", DefaultUpstreamSyncTimeout, cfg.Upstream.SyncTimeout)
	}
	if cfg.Proxy.Path != DefaultProxyPath {
		t.Errorf("expected path %q, got %q", DefaultProxyPath, cfg.Proxy.Path)
	}
	if !cfg.Proxy.CORS.IsEnabled() {
		t.Error("expected CORS enabled by default")
	}
	if !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "proxy: [unclosed")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
upstream:
  mode: "carrier-pigeon"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"upstream.workflow_id", "upstream.mode"} {
		if !fields[want] {
			t.Errorf("expected field error for %s, got %v", want, verr.Errors)
		}
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
upstream:
  workflow_id: "from-file"
`)

	t.Setenv("FORTUNE_UPSTREAM_WORKFLOW_ID", "from-env")
	t.Setenv("FORTUNE_UPSTREAM_TOKEN", "env-token")
	t.Setenv("FORTUNE_UPSTREAM_SYNC_TIMEOUT", "2m")
	t.Setenv("FORTUNE_UPSTREAM_MAX_RETRIES", "not-a-number")
	t.Setenv("FORTUNE_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Upstream.WorkflowID != "from-env" {
		t.Errorf("expected env workflow id, got %q", cfg.Upstream.WorkflowID)
	}
	if cfg.Upstream.Token != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Upstream.Token)
	}
	if cfg.Upstream.SyncTimeout != 2*time.Minute {
		t.Errorf("expected sync timeout 2m, got %v", cfg.Upstream.SyncTimeout)
	}
	if cfg.Upstream.MaxRetries != DefaultUpstreamMaxRetries {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled by env")
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("FORTUNE_UPSTREAM_WORKFLOW_ID", "env-only")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Upstream.WorkflowID != "env-only" {
		t.Errorf("expected workflow id from env, got %q", cfg.Upstream.WorkflowID)
	}
	if cfg.Proxy.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Proxy.ListenAddress)
	}
}
