package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ailife-hq/fortune-proxy/pkg/birth"
	"ailife-hq/fortune-proxy/pkg/normalize"
	"ailife-hq/fortune-proxy/pkg/proxy/types"
	"ailife-hq/fortune-proxy/pkg/retry"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// Runner executes one workflow attempt. *workflow.Client implements it.
type Runner interface {
	Run(ctx context.Context, mode workflow.Mode, params map[string]any) (map[string]any, error)
}

// Recorder receives per-request metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordRequest(mode, outcome string, attempts int, duration time.Duration)
	RecordRetry(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, int, time.Duration) {}
func (nopRecorder) RecordRetry(string)                               {}

// ForwarderOptions configures a Forwarder.
type ForwarderOptions struct {
	Runner      Runner
	DefaultMode workflow.Mode
	MaxRetries  int
	BaseBackoff time.Duration

	// Sleep replaces the backoff wait; tests use it to skip real delays.
	Sleep retry.SleepFunc

	Logger   *slog.Logger
	Recorder Recorder
}

// Forwarder validates a submission, runs the workflow with retries and
// normalizes the outcome.
type Forwarder struct {
	runner      Runner
	defaultMode workflow.Mode
	retry       retry.Controller
	logger      *slog.Logger
	recorder    Recorder
}

// NewForwarder creates a Forwarder.
func NewForwarder(opts ForwarderOptions) *Forwarder {
	f := &Forwarder{
		runner:      opts.Runner,
		defaultMode: opts.DefaultMode,
		logger:      opts.Logger,
		recorder:    opts.Recorder,
	}
	if f.defaultMode == "" {
		f.defaultMode = workflow.ModeSync
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.recorder == nil {
		f.recorder = nopRecorder{}
	}
	f.retry = retry.Controller{
		MaxRetries: opts.MaxRetries,
		BaseDelay:  opts.BaseBackoff,
		Sleep:      opts.Sleep,
	}
	return f
}

// DefaultMode is the mode used when a request does not choose one.
func (f *Forwarder) DefaultMode() workflow.Mode {
	return f.defaultMode
}

// Forward processes body to completion. The returned Call is always in a
// terminal state.
func (f *Forwarder) Forward(ctx context.Context, id string, mode workflow.Mode, body []byte) *Call {
	if mode == "" {
		mode = f.defaultMode
	}
	call := NewCall(id, mode)
	logger := f.logger.With("request_id", id, "mode", mode)

	call.advance(StateValidating)
	req, err := birth.Parse(body)
	if err != nil {
		logger.WarnContext(ctx, "rejected birth request", "error", err)
		call.fail(err)
		f.record(call)
		return call
	}
	call.Request = req

	call.advance(StateForwarding)
	logger.InfoContext(ctx, "forwarding birth request",
		"birth_datetime", req.Datetime(),
	)

	// The workflow run is paid for once it starts; a client hanging up
	// does not cancel it.
	runCtx := context.WithoutCancel(ctx)

	ctrl := f.retry
	ctrl.OnRetry = func(state retry.State, err error, delay time.Duration) {
		kind := workflow.KindOf(err)
		f.recorder.RecordRetry(string(kind))
		logger.WarnContext(ctx, "workflow attempt failed, retrying",
			"attempt", state.Attempt+1,
			"max_attempts", state.MaxAttempts,
			"kind", kind,
			"delay", delay,
			"error", err,
		)
	}

	params := req.Parameters()
	res, err := retry.Do(runCtx, ctrl, func(ctx context.Context, _ int) (map[string]any, error) {
		return f.runner.Run(ctx, mode, params)
	})
	call.Attempts = res.Attempts
	if err != nil {
		call.fail(err)
		f.record(call)
		logger.ErrorContext(ctx, "workflow call failed",
			"attempts", call.Attempts,
			"kind", Classify(err).Kind,
			"error", err,
		)
		return call
	}

	result, err := normalize.Normalize(res.Value, req)
	if err != nil {
		call.fail(err)
		f.record(call)
		logger.WarnContext(ctx, "workflow reported failure",
			"attempts", call.Attempts,
			"error", err,
		)
		return call
	}

	call.succeed(result)
	f.record(call)
	logger.InfoContext(ctx, "workflow call succeeded",
		"attempts", call.Attempts,
		"source", result.Source,
		"duration", call.Duration(),
	)
	return call
}

func (f *Forwarder) record(call *Call) {
	f.recorder.RecordRequest(string(call.Mode), call.Outcome(), call.Attempts, call.Duration())
}

// Respond renders a terminal call as an HTTP status and envelope.
func Respond(call *Call) (int, *types.Envelope) {
	if call.State == StateSucceeded {
		env := types.NewSuccess(call.Result, call.Attempts)
		env.RequestID = call.ID
		return http.StatusOK, env
	}

	failure := Classify(call.Err)
	env := failure.Envelope()
	if call.Attempts > 0 {
		env.Attempts = call.Attempts
	}
	env.RequestID = call.ID
	return failure.Status, env
}
