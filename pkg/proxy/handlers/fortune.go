package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/proxy/types"
	"ailife-hq/fortune-proxy/pkg/telemetry/logging"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// FortuneHandler serves the fortune endpoint.
type FortuneHandler struct {
	forwarder    *proxy.Forwarder
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewFortuneHandler creates the handler. maxBodyBytes <= 0 disables the
// body limit.
func NewFortuneHandler(forwarder *proxy.Forwarder, maxBodyBytes int64, logger *slog.Logger) *FortuneHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FortuneHandler{
		forwarder:    forwarder,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *FortuneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := logging.GetRequestID(ctx)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		h.write(w, r, http.StatusMethodNotAllowed,
			types.NewFailure("method_not_allowed", fmt.Sprintf("method %s not allowed", r.Method), false))
		return
	}

	mode := h.forwarder.DefaultMode()
	if raw := r.URL.Query().Get("mode"); raw != "" {
		parsed, err := workflow.ParseMode(raw)
		if err != nil {
			env := types.NewFailure(string(workflow.KindValidation), err.Error(), false)
			env.RequestID = requestID
			h.write(w, r, http.StatusBadRequest, env)
			return
		}
		mode = parsed
	}

	body, err := h.readBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		env := types.NewFailure(string(workflow.KindValidation), err.Error(), false)
		env.RequestID = requestID
		h.write(w, r, status, env)
		return
	}

	call := h.forwarder.Forward(ctx, requestID, mode, body)
	status, env := proxy.Respond(call)
	h.write(w, r, status, env)
}

func (h *FortuneHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (h *FortuneHandler) write(w http.ResponseWriter, r *http.Request, status int, env *types.Envelope) {
	if err := proxy.WriteJSON(w, status, env); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response",
			"request_id", logging.GetRequestID(r.Context()),
			"error", err,
		)
	}
}
