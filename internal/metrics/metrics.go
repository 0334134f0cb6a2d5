package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "provider_requests_total",
			Help:      "Total provider attempts by provider and result (success, retryable, fatal, exhausted)",
		},
		[]string{"provider", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aigateway",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider attempts by provider",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	operationReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "operations_total",
			Help:      "Gateway operations by operation kind and result",
		},
		[]string{"operation", "result"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the per-caller sliding window",
		},
	)

	parseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "parse_failures_total",
			Help:      "Structured responses that failed validation, by operation",
		},
		[]string{"operation"},
	)

	indexingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "indexing_operations_total",
			Help:      "Document indexing registrations by outcome (ready, failed, timeout)",
		},
		[]string{"outcome"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(providerReqs, providerLatency, operationReqs, rateLimited, parseFailures, indexingOps)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, result).Inc()
	if dur > 0 {
		providerLatency.WithLabelValues(provider).Observe(dur.Seconds())
	}
}

func IncOperation(operation, result string) { operationReqs.WithLabelValues(operation, result).Inc() }
func IncRateLimited()                       { rateLimited.Inc() }
func IncParseFailure(operation string)      { parseFailures.WithLabelValues(operation).Inc() }
func IncIndexing(outcome string)            { indexingOps.WithLabelValues(outcome).Inc() }
