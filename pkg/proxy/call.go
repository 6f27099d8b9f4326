package proxy

import (
	"time"

	"ailife-hq/fortune-proxy/pkg/birth"
	"ailife-hq/fortune-proxy/pkg/normalize"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// State is the lifecycle position of a Call.
type State int

const (
	StateReceived State = iota
	StateValidating
	StateForwarding
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidating:
		return "validating"
	case StateForwarding:
		return "forwarding"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Call is the state of one proxied request.
type Call struct {
	ID       string
	Mode     workflow.Mode
	State    State
	Started  time.Time
	Finished time.Time

	Request  birth.Request
	Attempts int
	Result   *normalize.Result
	Err      error
}

// NewCall starts a call in the Received state.
func NewCall(id string, mode workflow.Mode) *Call {
	return &Call{
		ID:      id,
		Mode:    mode,
		State:   StateReceived,
		Started: time.Now(),
	}
}

// Duration is the time from receipt to completion, or to now if the call
// is still running.
func (c *Call) Duration() time.Duration {
	if c.Finished.IsZero() {
		return time.Since(c.Started)
	}
	return c.Finished.Sub(c.Started)
}

// Outcome is "success" or the failure kind, for logs and metrics.
func (c *Call) Outcome() string {
	if c.State == StateSucceeded {
		return "success"
	}
	if c.Err == nil {
		return c.State.String()
	}
	return string(Classify(c.Err).Kind)
}

func (c *Call) advance(to State) {
	c.State = to
}

func (c *Call) succeed(result *normalize.Result) {
	c.Result = result
	c.State = StateSucceeded
	c.Finished = time.Now()
}

func (c *Call) fail(err error) {
	c.Err = err
	c.State = StateFailed
	c.Finished = time.Now()
}
