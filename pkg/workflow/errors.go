package workflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed call for retry decisions and for the
// status returned to the caller.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation_error"
	KindAuth           ErrorKind = "auth_error"
	KindGateway        ErrorKind = "gateway_error"
	KindTimeout        ErrorKind = "timeout"
	KindNetwork        ErrorKind = "network_error"
	KindBusiness       ErrorKind = "workflow_error"
	KindMalformed      ErrorKind = "malformed_upstream_response"
	KindUpstreamStatus ErrorKind = "upstream_status"
	KindInternal       ErrorKind = "internal_error"
)

// Error is implemented by every classified upstream failure.
type Error interface {
	error
	Kind() ErrorKind
	Retryable() bool
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindInternal.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// AuthError represents a rejected credential (HTTP 401 or 403) or a
// workflow plugin that stopped to ask for OAuth authorization.
type AuthError struct {
	// StatusCode is the upstream HTTP status (0 for an OAuth interrupt)
	StatusCode int

	// Message is the error message
	Message string

	// Body is the raw upstream response text, if any
	Body string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("workflow authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("workflow authentication failed: %s", e.Message)
}

func (e *AuthError) Kind() ErrorKind { return KindAuth }
func (e *AuthError) Retryable() bool { return false }

// GatewayError represents an HTTP 502, 503 or 504 from the upstream.
type GatewayError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("workflow gateway error (status %d)", e.StatusCode)
}

func (e *GatewayError) Kind() ErrorKind { return KindGateway }
func (e *GatewayError) Retryable() bool { return true }

// UpstreamStatusError is any other non-2xx response.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("workflow call failed with status %d", e.StatusCode)
}

func (e *UpstreamStatusError) Kind() ErrorKind { return KindUpstreamStatus }
func (e *UpstreamStatusError) Retryable() bool { return false }

// TimeoutError represents an attempt that ran past its deadline.
type TimeoutError struct {
	// Mode is the transport that timed out
	Mode Mode

	// Waited is how long the attempt ran before it was abandoned
	Waited time.Duration

	// Timeout is the configured deadline
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workflow %s request timed out after %s (limit %s)",
		e.Mode, e.Waited.Round(time.Millisecond), e.Timeout)
}

func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }
func (e *TimeoutError) Retryable() bool { return true }

// NetworkError represents a connection-level failure: DNS, refused
// connection, reset, broken stream.
type NetworkError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("workflow network error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("workflow network error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *NetworkError) Unwrap() error { return e.Cause }

func (e *NetworkError) Kind() ErrorKind { return KindNetwork }
func (e *NetworkError) Retryable() bool { return true }

// BusinessError is a workflow that ran but reported a non-zero code.
type BusinessError struct {
	Code     int64
	Message  string
	DebugURL string
}

// Error implements the error interface.
func (e *BusinessError) Error() string {
	return fmt.Sprintf("workflow failed with code %d: %s", e.Code, e.Message)
}

func (e *BusinessError) Kind() ErrorKind { return KindBusiness }
func (e *BusinessError) Retryable() bool { return false }

// MalformedResponseError is an upstream body that could not be used.
type MalformedResponseError struct {
	// Message describes what was wrong
	Message string

	// RawResponse is the body that failed to parse, possibly truncated
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed workflow response: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed workflow response: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *MalformedResponseError) Unwrap() error { return e.Cause }

func (e *MalformedResponseError) Kind() ErrorKind { return KindMalformed }
func (e *MalformedResponseError) Retryable() bool { return false }

// ErrNoResult is the cause of a stream that ended without a completion event.
var ErrNoResult = errors.New("no result produced")
