// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation requests by terminal outcome
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novellize_recommend_requests_total",
			Help: "Total number of chat recommendation requests by outcome",
		},
		[]string{"outcome"}, // "recommended", "empty_catalog", "no_user_message", "invalid_request", "internal_error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novellize_recommend_duration_seconds",
			Help:    "End-to-end duration of chat recommendation requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novellize_recommend_results",
			Help:    "Number of novels returned per recommendation",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novellize_scoring_duration_seconds",
			Help:    "Duration of one scoring pass over the catalog",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// LLM calls
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novellize_llm_calls_total",
			Help: "Total number of chat-completion calls by purpose and result",
		},
		[]string{"purpose", "result"}, // purpose: "preferences", "explanation"; result: "ok", "error", "fallback"
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novellize_llm_call_duration_seconds",
			Help:    "Duration of chat-completion calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"purpose"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "novellize_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Catalog cache
	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novellize_catalog_lookups_total",
			Help: "Total number of catalog cache reads by result",
		},
		[]string{"result"}, // "hit", "miss", "error", "malformed"
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "novellize_catalog_novels",
			Help: "Number of novels in the last catalog snapshot read or written",
		},
	)

	CatalogImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novellize_catalog_imports_total",
			Help: "Total number of catalog seed file imports by result",
		},
		[]string{"format", "result"},
	)

	// HTTP
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novellize_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordLLMCall records one chat-completion call.
func RecordLLMCall(purpose string, duration time.Duration, err error) {
	LLMCallDuration.WithLabelValues(purpose).Observe(duration.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	LLMCalls.WithLabelValues(purpose, result).Inc()
}

// RecordLLMFallback records that a caller replaced an unusable reply with its fallback.
func RecordLLMFallback(purpose string) {
	LLMCalls.WithLabelValues(purpose, "fallback").Inc()
}

// RecordRecommendation records a finished chat recommendation request.
func RecordRecommendation(outcome string, results int, duration time.Duration) {
	RecommendRequests.WithLabelValues(outcome).Inc()
	RecommendResults.Observe(float64(results))
	RecommendDuration.Observe(duration.Seconds())
}

// RecordCatalogLookup records one catalog read.
func RecordCatalogLookup(result string, novels int) {
	CatalogLookups.WithLabelValues(result).Inc()
	if result == "hit" {
		CatalogSize.Set(float64(novels))
	}
}
