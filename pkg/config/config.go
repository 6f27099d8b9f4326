package config

import "time"

// Config is the root configuration structure for the fortune proxy.
// It contains the HTTP server settings, the upstream workflow connection,
// telemetry, and secret resolution.
type Config struct {
	// Proxy contains HTTP server configuration including listen address,
	// timeouts, the proxied route, and CORS.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains the workflow API endpoint, credentials and the
	// retry/deadline policy applied to each proxied call.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures where credentials such as the workflow token
	// are resolved from.
	Secrets SecretsConfig `yaml:"secrets"`
}

// ProxyConfig contains configuration for the inbound HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Default: "127.0.0.1:3000"
	ListenAddress string `yaml:"listen_address"`

	// Path is the route that accepts birth-data requests.
	// Default: "/api/coze-workflow"
	Path string `yaml:"path"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. It has to cover every
	// upstream attempt plus backoff, so it defaults to well above
	// (max_retries+1) * sync_timeout.
	// Default: 65m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the inbound request body.
	// Default: 65536
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Content-Type", "Authorization", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// IsEnabled reports whether CORS is enabled; unset means enabled.
func (c CORSConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// UpstreamConfig describes the third-party workflow API.
type UpstreamConfig struct {
	// BaseURL is the workflow API origin.
	// Default: "https://api.coze.cn"
	BaseURL string `yaml:"base_url"`

	// SyncPath is appended to BaseURL for synchronous runs.
	// Default: "/v1/workflow/run"
	SyncPath string `yaml:"sync_path"`

	// StreamPath is appended to BaseURL for streaming runs.
	// Default: "/v1/workflow/stream_run"
	StreamPath string `yaml:"stream_path"`

	// WorkflowID identifies the workflow to run. Required.
	WorkflowID string `yaml:"workflow_id"`

	// Token is the bearer credential. Usually a ${secret:workflow-token}
	// reference resolved through the secrets manager at startup; literal
	// tokens belong in the environment, never in the repository.
	Token string `yaml:"token"`

	// UserAgent is sent on every upstream request.
	// Default: "fortune-proxy/<version>"
	UserAgent string `yaml:"user_agent"`

	// Mode selects the default transport: "sync" or "stream".
	// Default: "sync"
	Mode string `yaml:"mode"`

	// SyncTimeout is the per-attempt deadline in sync mode.
	// Default: 15m
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// StreamTimeout is the per-attempt deadline in stream mode.
	// Default: 5m
	StreamTimeout time.Duration `yaml:"stream_timeout"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BaseBackoff is the delay before the first retry; later retries double it.
	// Default: 1s
	BaseBackoff time.Duration `yaml:"base_backoff"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks bearer tokens and access tokens in log values.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// ShouldRedact reports whether secret redaction is on; unset means on.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactSecrets == nil || *c.RedactSecrets
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "fortune"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "proxy"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are histogram buckets in seconds, tuned for
	// slow AI-backed workflows.
	// Default: [1, 5, 15, 30, 60, 120, 300, 600, 900]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// IsEnabled reports whether metrics are enabled, treating an unset value
// as the default.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name attached to exported spans.
	// Default: "fortune-proxy"
	ServiceName string `yaml:"service_name"`
}

// SecretsConfig configures credential resolution.
type SecretsConfig struct {
	// EnvPrefix is prepended to upper-cased secret names when reading them
	// from the environment.
	// Default: "FORTUNE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// FileDir is an optional directory of one-file-per-secret mounts.
	FileDir string `yaml:"file_dir"`

	// Watch reloads file secrets when the directory changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// CacheTTL is how long resolved secrets are cached.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RefreshSchedule is an optional cron expression on which all secret
	// providers are refreshed, e.g. "*/30 * * * *".
	RefreshSchedule string `yaml:"refresh_schedule"`
}
