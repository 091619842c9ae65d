package middleware

import (
	"net/http"
	"time"

	"github.com/iudanet/trackmail/internal/server/metrics"
)

// Metrics records request counts and durations per mux pattern.
// It must wrap the ServeMux directly: the mux sets r.Pattern on the request
// it receives, so a copied request would hide the matched route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
