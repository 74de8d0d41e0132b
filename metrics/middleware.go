package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// rejectReasons maps the statuses produced by the admin guards to a label
var rejectReasons = map[int]string{
	http.StatusTooManyRequests:             "rate_limited",
	http.StatusRequestEntityTooLarge:       "body_too_large",
	http.StatusRequestHeaderFieldsTooLarge: "headers_too_large",
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records admin request counts and latency per route pattern and
// status class, and counts requests turned away by the size and rate guards.
// Requests that match no route share the "unmatched" label.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestInFlight.Inc()
		defer HTTPRequestInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		HTTPRequestTotals.WithLabelValues(r.Method, route, StatusLabel(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		if reason, ok := rejectReasons[rec.status]; ok {
			HTTPRequestsRejectedTotal.WithLabelValues(reason).Inc()
		}
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}
