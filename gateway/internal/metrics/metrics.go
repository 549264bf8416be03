package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusClientClosed is recorded when the caller went away before the
// upstream answered. Nothing is written to the client in that case.
const StatusClientClosed = 499

var (
	// Proxy metrics
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_proxy_requests_total",
			Help: "Total number of proxied requests by route and response status",
		},
		[]string{"route", "method", "status"},
	)

	ProxyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventra_gateway_proxy_duration_seconds",
			Help:    "Duration of upstream round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_upstream_errors_total",
			Help: "Total number of upstream transport failures by kind",
		},
		[]string{"route", "kind"},
	)

	// Authorization metrics
	AuthDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_auth_decisions_total",
			Help: "Total number of authorization decisions by outcome",
		},
		[]string{"route", "outcome"},
	)

	// Auth endpoint metrics
	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_auth_operations_total",
			Help: "Total number of auth endpoint calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// Restock metrics
	RestockRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventra_gateway_restock_recommendations_total",
			Help: "Total number of smart restock recommendations by risk level",
		},
		[]string{"risk"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventra_gateway_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
