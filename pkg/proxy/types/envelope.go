package types

import "ailife-hq/fortune-proxy/pkg/normalize"

// Envelope is the response body of the fortune endpoint.
type Envelope struct {
	Success bool `json:"success"`

	// Data is the normalized result on success.
	Data *normalize.Result `json:"data,omitempty"`

	// Error is a stable machine-readable failure kind, e.g. "timeout".
	Error string `json:"error,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message,omitempty"`

	// Code is the upstream business code, when the workflow reported one.
	Code *int64 `json:"code,omitempty"`

	// DebugURL links to the upstream execution trace.
	DebugURL string `json:"debug_url,omitempty"`

	// Attempts is the number of upstream attempts made.
	Attempts int `json:"attempts,omitempty"`

	// Retryable is set on every failure.
	Retryable *bool `json:"retryable,omitempty"`

	// RequestID correlates the response with server logs.
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccess wraps a normalized result.
func NewSuccess(result *normalize.Result, attempts int) *Envelope {
	return &Envelope{Success: true, Data: result, Attempts: attempts}
}

// NewFailure creates a failure envelope.
func NewFailure(kind, message string, retryable bool) *Envelope {
	return &Envelope{
		Error:     kind,
		Message:   message,
		Retryable: &retryable,
	}
}

// WithCode attaches an upstream business code.
func (e *Envelope) WithCode(code int64) *Envelope {
	e.Code = &code
	return e
}

// IsRetryable reports the retryable flag; success envelopes report false.
func (e *Envelope) IsRetryable() bool {
	return e.Retryable != nil && *e.Retryable
}
