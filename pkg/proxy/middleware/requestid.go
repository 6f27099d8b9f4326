package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"ailife-hq/fortune-proxy/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied IDs.
const maxRequestIDLength = 128

// RequestID adds a request ID to the context and the response headers. A
// client-supplied X-Request-ID is kept if it is short and printable.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
