package middleware

import "net/http"

// Tracker counts requests being served.
type Tracker interface {
	RequestStarted()
	RequestFinished()
}

// InFlight reports each request to t for its whole duration.
func InFlight(t Tracker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.RequestStarted()
			defer t.RequestFinished()
			next.ServeHTTP(w, r)
		})
	}
}
