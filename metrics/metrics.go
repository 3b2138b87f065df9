// package metrics defines the prometheus collectors
// exported by the proxy service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProxiedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nixta_proxy_requests_total",
			Help: "Total number of requests proxied to the upstream",
		},
		[]string{"mount", "method", "status"},
	)

	ProxiedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nixta_proxy_request_duration_seconds",
			Help:    "Duration of proxied requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mount"},
	)

	RewriteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nixta_proxy_rewrite_outcomes_total",
			Help: "Total number of upstream responses by rewrite outcome",
		},
		[]string{"mode", "outcome"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nixta_proxy_upstream_errors_total",
			Help: "Total number of proxied requests that failed with a gateway error",
		},
		[]string{"mount", "reason"},
	)
)
