package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latency labelled by route pattern.
// Requests for skipPaths are not recorded.
func Metrics(m *metrics.Metrics, skipPaths ...string) func(http.Handler) http.Handler {
	skip := map[string]bool{}
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			start := time.Now()
			sw := wrap(w)
			next.ServeHTTP(sw, r)
			m.ObserveRequest(r.Method, routePattern(r), sw.status, time.Since(start))
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// MetricsInc counts every request passing through, such as file server hits.
func MetricsInc(c prometheus.Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Inc()
			next.ServeHTTP(w, r)
		})
	}
}
