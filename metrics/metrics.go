// Package metrics provides Prometheus metrics for the NCD policy server.
// It exports tool and upstream metrics:
//   - tool_invocations_total: Counter with the invocation outcome label
//   - lookup_resolutions_total: Counter with source and result labels
//   - cms_requests_total: Counter with the upstream status label
//   - cms_request_duration_seconds: Histogram of upstream latency
//   - cms_probe_up: Gauge set by the scheduled upstream probe
//
// and the admin HTTP server metrics (http_request_total by route and status
// class, http_request_duration_seconds, http_request_in_flight,
// http_requests_rejected_total).
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_invocations_total",
			Help: "Total fetch_ncd_policy invocations",
		},
		[]string{"outcome"},
	)

	LookupResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_resolutions_total",
			Help: "Title resolutions against the reference table",
		},
		[]string{"source", "result"},
	)

	CMSRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_requests_total",
			Help: "Total requests sent to the CMS coverage API",
		},
		[]string{"status"},
	)

	CMSRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_request_duration_seconds",
			Help:    "CMS coverage API latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	CMSProbeUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cms_probe_up",
			Help: "1 when the last scheduled CMS probe succeeded",
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	HTTPRequestsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_rejected_total",
			Help: "Admin requests refused by the rate limiter or the size limits",
		},
		[]string{"reason"},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen in last ~5 minutes)",
		},
	)
)

func init() {
	prometheus.MustRegister(ToolInvocationsTotal)
	prometheus.MustRegister(LookupResolutionsTotal)
	prometheus.MustRegister(CMSRequestsTotal)
	prometheus.MustRegister(CMSRequestDuration)
	prometheus.MustRegister(CMSProbeUp)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(HTTPRequestsRejectedTotal)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}

// StatusLabel maps an upstream status code to a metric label; 0 means the
// request never got a response.
func StatusLabel(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}
