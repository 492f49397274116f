package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_provider_requests_total",
			Help: "Total number of provider invocations",
		},
		[]string{"provider", "status"}, // status: success, error, timeout
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandlens_provider_latency_seconds",
			Help:    "Provider invocation latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	ProviderCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_provider_cost_usd_total",
			Help: "Accumulated provider cost in USD",
		},
		[]string{"provider"},
	)

	ProviderCitations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandlens_provider_citations",
			Help:    "Citations extracted per successful response",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"provider"},
	)

	// Request metrics
	DedupedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brandlens_requests_deduplicated_total",
			Help: "Requests that joined an in-flight dispatch with the same id",
		},
	)

	// Processing metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_processing_sessions_total",
			Help: "Processing sessions by final status",
		},
		[]string{"status"}, // status: completed, cancelled, failed
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brandlens_processing_sessions_active",
			Help: "Processing sessions currently running",
		},
	)

	QueriesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brandlens_queries_processed_total",
			Help: "Brand queries processed across all sessions",
		},
	)

	// Credit metrics
	CreditsDebitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brandlens_credits_debited_total",
			Help: "Credits debited for queries",
		},
	)
)

// RecordProviderResponse records one settled provider invocation
func RecordProviderResponse(provider, status string, elapsed time.Duration, cost float64, citations int) {
	ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if cost > 0 {
		ProviderCostTotal.WithLabelValues(provider).Add(cost)
	}
	if status == "success" {
		ProviderCitations.WithLabelValues(provider).Observe(float64(citations))
	}
}

// RecordSession records a finished processing session
func RecordSession(status string) {
	SessionsTotal.WithLabelValues(status).Inc()
}
