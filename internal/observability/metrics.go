package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	actionsRegistered    *prometheus.CounterVec
	revocationsTotal     *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	banRateLimitedTotal  *prometheus.CounterVec
	effectDispatchErrors *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the ledger API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total number of ledger API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_latency_seconds",
			Help:    "Latency distribution for ledger API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Total number of error responses returned by ledger endpoints.",
		}, []string{"method", "route", "status"})

		actionsRegistered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_actions_registered_total",
			Help: "Number of actions written to the ledger, by type.",
		}, []string{"type"})

		revocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_revocations_total",
			Help: "Revocation transitions, by action type and resulting status.",
		}, []string{"type", "status"})

		searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_search_duration_seconds",
			Help:    "Time spent answering history searches.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"search_type"})

		banRateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_ban_rate_limited_total",
			Help: "Ban registrations refused by the admin rate limiter.",
		}, []string{"backend"})

		effectDispatchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_effect_dispatch_errors_total",
			Help: "Revocation effects that could not be delivered, by effect kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			actionsRegistered,
			revocationsTotal,
			searchDuration,
			banRateLimitedTotal,
			effectDispatchErrors,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ActionsRegistered exposes the counter of ledger writes.
func ActionsRegistered() *prometheus.CounterVec {
	RegisterMetrics()
	return actionsRegistered
}

// Revocations exposes the counter of revocation transitions.
func Revocations() *prometheus.CounterVec {
	RegisterMetrics()
	return revocationsTotal
}

// SearchDuration exposes the history search latency histogram.
func SearchDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return searchDuration
}

// BanRateLimited exposes the counter of rate limited ban attempts.
func BanRateLimited() *prometheus.CounterVec {
	RegisterMetrics()
	return banRateLimitedTotal
}

// EffectDispatchErrors exposes the counter of undelivered revocation effects.
func EffectDispatchErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return effectDispatchErrors
}

// MetricsHandler serves the default registry, which also carries the Go runtime
// and process collectors.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
