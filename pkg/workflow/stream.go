package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ailife-hq/fortune-proxy/pkg/sse"
)

// Event names recognized in stream payloads. Upstreams have used both
// the dotted and the capitalized spellings.
const (
	eventWorkflowFinish    = "workflow.finish"
	eventDone              = "done"
	eventNode              = "node"
	eventMessage           = "message"
	eventInterrupt         = "interrupt"
	eventWorkflowInterrupt = "workflow.interrupt"
	eventError             = "error"

	terminalNodeTitle = "End"
)

// streamFrame covers every field the accumulator looks at. Fields may sit
// at the top level or under data.
type streamFrame struct {
	Event         string          `json:"event"`
	Data          json.RawMessage `json:"data"`
	NodeTitle     string          `json:"node_title"`
	NodeType      string          `json:"node_type"`
	Content       *string         `json:"content"`
	NodeIsFinish  *bool           `json:"node_is_finish"`
	DebugURL      string          `json:"debug_url"`
	Usage         json.RawMessage `json:"usage"`
	InterruptData json.RawMessage `json:"interrupt_data"`
	ErrorCode     json.Number     `json:"error_code"`
	ErrorMessage  string          `json:"error_message"`
	Code          json.Number     `json:"code"`
	Msg           string          `json:"msg"`
}

// Accumulator folds decoded stream events into one result. It is used
// for a single stream and is not safe for concurrent use.
type Accumulator struct {
	data     any
	hasData  bool
	partial  strings.Builder
	debugURL string
	usage    any
	skipped  int

	logger *slog.Logger
	obs    Observer
}

// NewAccumulator returns an empty accumulator. logger and obs may be nil.
func NewAccumulator(logger *slog.Logger, obs Observer) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Accumulator{logger: logger, obs: obs}
}

// Add applies one event. A returned error ends the call: an OAuth
// interrupt yields *AuthError and an error event yields *BusinessError.
// Malformed frames are logged, counted and skipped.
func (a *Accumulator) Add(ev sse.Event) error {
	if ev.Done {
		return nil
	}

	var frame streamFrame
	dec := json.NewDecoder(bytes.NewReader(ev.Data))
	dec.UseNumber()
	if err := dec.Decode(&frame); err != nil {
		a.skipped++
		a.obs.ObserveSkippedFrame()
		a.logger.Warn("skipping malformed stream frame",
			"error", err,
			"frame", truncate(string(ev.Data), 256),
		)
		return nil
	}

	// Some upstreams nest the node fields under data.
	inner := frame
	if nested, ok := decodeNested(frame.Data); ok {
		inner = nested
	}

	name := strings.ToLower(frame.Event)
	switch {
	case name == eventInterrupt || name == eventWorkflowInterrupt ||
		present(frame.InterruptData) || present(inner.InterruptData):
		return a.interruptError(frame, inner)

	case name == eventError || nonZero(frame.ErrorCode):
		return errorEvent(frame, inner)

	case name == eventWorkflowFinish || name == eventDone:
		if present(frame.Data) {
			a.setData(frame.Data)
		}

	case isTerminalNode(frame):
		a.setContent(frame)

	case (name == eventNode || name == eventMessage) && isTerminalNode(inner):
		a.setContent(inner)
	}

	if url := firstNonEmpty(frame.DebugURL, inner.DebugURL); url != "" {
		a.debugURL = url
	}
	if len(frame.Usage) > 0 {
		var usage any
		if json.Unmarshal(frame.Usage, &usage) == nil && usage != nil {
			a.usage = usage
		}
	}
	return nil
}

// Skipped returns the number of malformed frames seen.
func (a *Accumulator) Skipped() int { return a.skipped }

// Result returns the accumulated result in sync-response shape, or a
// *MalformedResponseError wrapping ErrNoResult.
func (a *Accumulator) Result() (map[string]any, error) {
	if !a.hasData {
		return nil, &MalformedResponseError{
			Message: "stream ended without a completion event",
			Cause:   ErrNoResult,
		}
	}
	result := map[string]any{
		"code": 0,
		"data": a.data,
	}
	if a.debugURL != "" {
		result["debug_url"] = a.debugURL
	}
	if a.usage != nil {
		result["usage"] = a.usage
	}
	return result, nil
}

// setContent records terminal node output. Output streamed in pieces
// (node_is_finish present) is concatenated; otherwise the content
// replaces whatever was accumulated.
func (a *Accumulator) setContent(f streamFrame) {
	if f.NodeIsFinish == nil {
		a.data, a.hasData = *f.Content, true
		return
	}
	a.partial.WriteString(*f.Content)
	a.data, a.hasData = a.partial.String(), true
}

func (a *Accumulator) setData(raw json.RawMessage) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return
	}
	a.data, a.hasData = v, true
}

// readStream drives the decoder until the stream ends or an event
// short-circuits the call.
func (c *Client) readStream(ctx context.Context, body io.Reader) (map[string]any, error) {
	dec := sse.NewDecoder(body)
	dec.SetMaxLineBytes(c.opts.MaxFrameBytes)
	acc := NewAccumulator(c.logger, c.obs)

	for {
		ev, err := dec.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, sse.ErrLineTooLong) {
			return nil, &MalformedResponseError{Message: "stream frame exceeds limit", Cause: err}
		}
		if err != nil {
			return nil, err
		}
		if err := acc.Add(ev); err != nil {
			return nil, err
		}
	}

	if acc.Skipped() > 0 {
		c.logger.Info("stream completed with skipped frames", "skipped", acc.Skipped())
	}
	return acc.Result()
}

func decodeNested(raw json.RawMessage) (streamFrame, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return streamFrame{}, false
	}
	var inner streamFrame
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&inner); err != nil {
		return streamFrame{}, false
	}
	return inner, true
}

func isTerminalNode(f streamFrame) bool {
	return f.Content != nil && f.NodeTitle == terminalNodeTitle
}

// present reports whether raw holds a value other than JSON null.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (a *Accumulator) interruptError(frame, inner streamFrame) error {
	raw := frame.InterruptData
	if !present(raw) {
		raw = inner.InterruptData
	}

	var data struct {
		Type  json.RawMessage `json:"type"`
		Data  string          `json:"data"`
		Event string          `json:"event_id"`
	}
	if present(raw) {
		if err := json.Unmarshal(raw, &data); err != nil {
			a.logger.Debug("undecodable interrupt data",
				"error", err,
				"interrupt_data", truncate(string(raw), 256),
			)
		}
	}

	kind := strings.ToLower(strings.Trim(string(data.Type), `"`))
	if kind == "5" || strings.Contains(kind, "oauth") || strings.Contains(strings.ToLower(data.Data), "oauth") {
		msg := "a workflow plugin requires OAuth authorization"
		if title := firstNonEmpty(frame.NodeTitle, inner.NodeTitle); title != "" {
			msg = fmt.Sprintf("%s (node %q)", msg, title)
		}
		return &AuthError{Message: msg, Body: string(raw)}
	}

	return &BusinessError{
		Code:     -1,
		Message:  "workflow interrupted waiting for input",
		DebugURL: firstNonEmpty(frame.DebugURL, inner.DebugURL),
	}
}

func errorEvent(frame, inner streamFrame) error {
	code := frame.ErrorCode
	if !nonZero(code) {
		code = inner.ErrorCode
	}
	if !nonZero(code) {
		code = inner.Code
	}
	n, _ := code.Int64()
	if n == 0 {
		n = -1
	}
	return &BusinessError{
		Code:     n,
		Message:  firstNonEmpty(frame.ErrorMessage, inner.ErrorMessage, inner.Msg, "workflow reported an error"),
		DebugURL: firstNonEmpty(frame.DebugURL, inner.DebugURL),
	}
}

func nonZero(n json.Number) bool {
	if n == "" {
		return false
	}
	f, err := n.Float64()
	return err == nil && f != 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
