package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{Field: "proxy.path", Message: "must start with /"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_body_bytes", Message: "must not be negative"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "proxy.cors.max_age", Message: "must not be negative"})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.BaseURL),
		})
	}
	if !strings.HasPrefix(cfg.SyncPath, "/") {
		errs = append(errs, FieldError{Field: "upstream.sync_path", Message: "must start with /"})
	}
	if !strings.HasPrefix(cfg.StreamPath, "/") {
		errs = append(errs, FieldError{Field: "upstream.stream_path", Message: "must start with /"})
	}
	if strings.TrimSpace(cfg.WorkflowID) == "" {
		errs = append(errs, FieldError{Field: "upstream.workflow_id", Message: "is required"})
	}
	if cfg.Mode != ModeSync && cfg.Mode != ModeStream {
		errs = append(errs, FieldError{
			Field:   "upstream.mode",
			Message: fmt.Sprintf("must be %q or %q, got %q", ModeSync, ModeStream, cfg.Mode),
		})
	}
	if cfg.SyncTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.sync_timeout", Message: "must be positive"})
	}
	if cfg.StreamTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.stream_timeout", Message: "must be positive"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_retries", Message: "must not be negative"})
	}
	if cfg.BaseBackoff < 0 {
		errs = append(errs, FieldError{Field: "upstream.base_backoff", Message: "must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.RequestDurationBuckets); i++ {
		if cfg.Metrics.RequestDurationBuckets[i] <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "must be strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}

	return errs
}

func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.FileDir == "" {
		errs = append(errs, FieldError{Field: "secrets.watch", Message: "requires secrets.file_dir"})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{Field: "secrets.cache_ttl", Message: "must not be negative"})
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "secrets.refresh_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}
