// Package workflow calls the upstream fortune workflow API.
//
// A Client issues exactly one HTTP request per Run. Retries are the
// caller's concern; every failure is returned as one of the typed errors
// in errors.go so the caller can decide.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Mode selects the upstream transport.
type Mode string

const (
	ModeSync   Mode = "sync"
	ModeStream Mode = "stream"
)

// ParseMode converts a configuration or query value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSync:
		return ModeSync, nil
	case ModeStream:
		return ModeStream, nil
	}
	return "", fmt.Errorf("unknown workflow mode %q", s)
}

// maxErrorBody caps how much of a failed response is kept.
const maxErrorBody = 64 << 10

// Credentials supplies the bearer token for each attempt, so that a
// rotated secret is picked up without a restart.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("no workflow token configured")
	}
	return string(t), nil
}

// Observer receives per-attempt measurements. The metrics collector
// implements it.
type Observer interface {
	ObserveAttempt(mode string, result string, duration time.Duration)
	ObserveSkippedFrame()
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, string, time.Duration) {}
func (nopObserver) ObserveSkippedFrame()                         {}

// Options configures a Client.
type Options struct {
	BaseURL    string
	SyncPath   string
	StreamPath string
	WorkflowID string
	UserAgent  string

	// Credentials provides the bearer token. Required.
	Credentials Credentials

	// SyncTimeout and StreamTimeout bound a single attempt.
	SyncTimeout   time.Duration
	StreamTimeout time.Duration

	// MaxFrameBytes bounds one buffered stream line. Zero means
	// sse.DefaultMaxLineBytes.
	MaxFrameBytes int

	// HTTPClient defaults to a client with no overall timeout; deadlines
	// come from the per-attempt context.
	HTTPClient *http.Client

	Logger   *slog.Logger
	Tracer   trace.Tracer
	Observer Observer
}

// Client talks to the workflow API.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
	obs    Observer
}

// NewClient creates a Client. Zero timeouts fall back to 15 minutes for
// sync and 5 minutes for stream.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("workflow: base URL is required")
	}
	if opts.WorkflowID == "" {
		return nil, errors.New("workflow: workflow ID is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("workflow: credentials are required")
	}
	if opts.SyncPath == "" {
		opts.SyncPath = "/v1/workflow/run"
	}
	if opts.StreamPath == "" {
		opts.StreamPath = "/v1/workflow/stream_run"
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 15 * time.Minute
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 5 * time.Minute
	}

	c := &Client{
		opts:   opts,
		http:   opts.HTTPClient,
		logger: opts.Logger,
		tracer: opts.Tracer,
		obs:    opts.Observer,
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer("workflow")
	}
	if c.obs == nil {
		c.obs = nopObserver{}
	}
	return c, nil
}

// Timeout returns the per-attempt deadline for mode.
func (c *Client) Timeout(mode Mode) time.Duration {
	if mode == ModeStream {
		return c.opts.StreamTimeout
	}
	return c.opts.SyncTimeout
}

type runRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Parameters map[string]any `json:"parameters"`
}

// Run executes the workflow once and returns the decoded result object.
// In stream mode the object is assembled from the event stream and has
// the same shape as a sync response: {code, data, debug_url, usage}.
func (c *Client) Run(ctx context.Context, mode Mode, params map[string]any) (map[string]any, error) {
	timeout := c.Timeout(mode)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "workflow.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("workflow.mode", string(mode)),
			attribute.String("workflow.id", c.opts.WorkflowID),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := c.run(ctx, mode, params, start, timeout)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	c.obs.ObserveAttempt(string(mode), outcome, elapsed)

	c.logger.Debug("workflow attempt finished",
		"mode", mode,
		"outcome", outcome,
		"duration", elapsed,
	)
	return result, err
}

func (c *Client) run(ctx context.Context, mode Mode, params map[string]any, start time.Time, timeout time.Duration) (map[string]any, error) {
	resp, err := c.post(ctx, mode, params)
	if err != nil {
		return nil, c.transportError(ctx, mode, err, start, timeout)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	if mode == ModeStream {
		result, err := c.readStream(ctx, resp.Body)
		if err != nil {
			var classified Error
			if errors.As(err, &classified) {
				return nil, err
			}
			return nil, c.transportError(ctx, mode, err, start, timeout)
		}
		return result, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, mode, err, start, timeout)
	}
	return decodeResult(body)
}

func (c *Client) post(ctx context.Context, mode Mode, params map[string]any) (*http.Response, error) {
	token, err := c.opts.Credentials.Token(ctx)
	if err != nil {
		return nil, &AuthError{Message: err.Error()}
	}

	payload, err := json.Marshal(runRequest{WorkflowID: c.opts.WorkflowID, Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := c.opts.SyncPath
	if mode == ModeStream {
		path = c.opts.StreamPath
	}
	url := strings.TrimRight(c.opts.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if mode == ModeStream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Debug("sending workflow request",
		"mode", mode,
		"url", url,
	)
	return c.http.Do(req)
}

// transportError classifies a failure that has no HTTP status. Errors
// that are already classified pass through.
func (c *Client) transportError(ctx context.Context, mode Mode, err error, start time.Time, timeout time.Duration) error {
	var classified Error
	if errors.As(err, &classified) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Mode: mode, Waited: time.Since(start), Timeout: timeout}
	}
	return &NetworkError{Message: "request failed", Cause: err}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := string(raw)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    "upstream rejected the workflow credential",
			Body:       body,
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &GatewayError{StatusCode: resp.StatusCode, Body: body}
	default:
		return &UpstreamStatusError{StatusCode: resp.StatusCode, Body: body}
	}
}

func decodeResult(body []byte) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &MalformedResponseError{
			Message:     "response is not a JSON object",
			RawResponse: truncate(string(body), maxErrorBody),
			Cause:       err,
		}
	}
	if result == nil {
		return nil, &MalformedResponseError{Message: "response body is empty"}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
