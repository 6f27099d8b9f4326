package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultProxyPath       = "/api/coze-workflow"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 65 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = 64 * 1024

	// CORS defaults
	DefaultCORSMaxAge = 3600 // 1 hour

	// Upstream defaults
	DefaultUpstreamBaseURL       = "https://api.coze.cn"
	DefaultUpstreamSyncPath      = "/v1/workflow/run"
	DefaultUpstreamStreamPath    = "/v1/workflow/stream_run"
	DefaultUpstreamUserAgent     = "fortune-proxy/0.1.0"
	DefaultUpstreamMode          = ModeSync
	DefaultUpstreamSyncTimeout   = 15 * time.Minute
	DefaultUpstreamStreamTimeout = 5 * time.Minute
	DefaultUpstreamMaxRetries    = 3
	DefaultUpstreamBaseBackoff   = time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "fortune"
	DefaultMetricsSubsystem   = "proxy"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "fortune-proxy"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "FORTUNE_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute
)

// Upstream transport modes.
const (
	ModeSync   = "sync"
	ModeStream = "stream"
)

// DefaultRequestDurationBuckets spans one second to the full sync deadline.
var DefaultRequestDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 900}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.Path == "" {
		cfg.Proxy.Path = DefaultProxyPath
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.WriteTimeout == 0 {
		cfg.Proxy.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Proxy.MaxBodyBytes == 0 {
		cfg.Proxy.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// CORS defaults
	if len(cfg.Proxy.CORS.AllowedOrigins) == 0 {
		cfg.Proxy.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Proxy.CORS.AllowedMethods) == 0 {
		cfg.Proxy.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.Proxy.CORS.AllowedHeaders) == 0 {
		cfg.Proxy.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if len(cfg.Proxy.CORS.ExposedHeaders) == 0 {
		cfg.Proxy.CORS.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cfg.Proxy.CORS.MaxAge == 0 {
		cfg.Proxy.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Upstream defaults
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.SyncPath == "" {
		cfg.Upstream.SyncPath = DefaultUpstreamSyncPath
	}
	if cfg.Upstream.StreamPath == "" {
		cfg.Upstream.StreamPath = DefaultUpstreamStreamPath
	}
	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = DefaultUpstreamUserAgent
	}
	if cfg.Upstream.Mode == "" {
		cfg.Upstream.Mode = DefaultUpstreamMode
	}
	if cfg.Upstream.SyncTimeout == 0 {
		cfg.Upstream.SyncTimeout = DefaultUpstreamSyncTimeout
	}
	if cfg.Upstream.StreamTimeout == 0 {
		cfg.Upstream.StreamTimeout = DefaultUpstreamStreamTimeout
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = DefaultUpstreamMaxRetries
	}
	if cfg.Upstream.BaseBackoff == 0 {
		cfg.Upstream.BaseBackoff = DefaultUpstreamBaseBackoff
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}
}

// Default returns a configuration with every default applied. It is
// handy for tests and for the CLI when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
