package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests that hit no route, so scanners probing random
// paths cannot blow up the label cardinality.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records request durations by route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		route := routePattern(r)
		if route == "/metrics" {
			return
		}
		observability.ObserveHTTP(r.Method, route, rw.statusCode(), time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
