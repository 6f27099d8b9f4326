package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/proxy/types"
	"ailife-hq/fortune-proxy/pkg/telemetry/logging"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// Recovery recovers from panics in handlers and answers with a 500
// envelope. The stack is logged, never returned.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				env := types.NewFailure(string(workflow.KindInternal), "代理服务器内部错误", false)
				env.RequestID = logging.GetRequestID(r.Context())
				_ = proxy.WriteJSON(w, http.StatusInternalServerError, env)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
