package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention FORTUNE_SECTION_FIELD (e.g., FORTUNE_PROXY_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults, so a deployment
// can be configured from the environment alone.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format FORTUNE_SECTION_FIELD.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("FORTUNE_PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envString("FORTUNE_PROXY_PATH", &cfg.Proxy.Path)
	envDuration("FORTUNE_PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("FORTUNE_PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("FORTUNE_PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("FORTUNE_PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	if val := os.Getenv("FORTUNE_PROXY_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Proxy.MaxHeaderBytes = i
		}
	}
	if val := os.Getenv("FORTUNE_PROXY_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Proxy.MaxBodyBytes = i
		}
	}
	envBoolPtr("FORTUNE_PROXY_CORS_ENABLED", &cfg.Proxy.CORS.Enabled)

	// Upstream overrides
	envString("FORTUNE_UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	envString("FORTUNE_UPSTREAM_WORKFLOW_ID", &cfg.Upstream.WorkflowID)
	envString("FORTUNE_UPSTREAM_TOKEN", &cfg.Upstream.Token)
	envString("FORTUNE_UPSTREAM_MODE", &cfg.Upstream.Mode)
	envDuration("FORTUNE_UPSTREAM_SYNC_TIMEOUT", &cfg.Upstream.SyncTimeout)
	envDuration("FORTUNE_UPSTREAM_STREAM_TIMEOUT", &cfg.Upstream.StreamTimeout)
	envDuration("FORTUNE_UPSTREAM_BASE_BACKOFF", &cfg.Upstream.BaseBackoff)
	if val := os.Getenv("FORTUNE_UPSTREAM_MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.MaxRetries = i
		}
	}

	// Telemetry overrides
	envString("FORTUNE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("FORTUNE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBoolPtr("FORTUNE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("FORTUNE_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	if val := os.Getenv("FORTUNE_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	envString("FORTUNE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	// Secrets overrides
	envString("FORTUNE_SECRETS_FILE_DIR", &cfg.Secrets.FileDir)
	envString("FORTUNE_SECRETS_REFRESH_SCHEDULE", &cfg.Secrets.RefreshSchedule)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBoolPtr(key string, dst **bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}
