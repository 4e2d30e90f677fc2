// Package metrics exposes the Prometheus collectors of the generation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes.
const (
	ResultCompleted     = "completed"
	ResultFailed        = "failed"
	ResultQuotaExceeded = "quota_exceeded"
	ResultProviderError = "provider_error"
)

var (
	generationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Name:      "generation_requests_total",
			Help:      "Generation requests by outcome",
		},
		[]string{"result"},
	)

	packagingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Name:      "packaging_total",
			Help:      "Bundle packaging runs by outcome",
		},
		[]string{"result"},
	)

	providerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "botforge",
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of LLM provider calls",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
)

func RecordGeneration(result string) {
	generationRequests.WithLabelValues(result).Inc()
}

func RecordPackaging(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	packagingRuns.WithLabelValues(result).Inc()
}

// ObserveProvider matches llm.Observer.
func ObserveProvider(elapsed time.Duration, _ error) {
	providerDuration.Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
