package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts every request by method, route pattern and
	// status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"method", "path", "status"},
	)

	// RequestLatency observes wall time per request.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_latency_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"method", "path"},
	)

	// WebhookRequests counts ingestion outcomes:
	// created | duplicate | invalid_signature | validation_error | error.
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_requests_total", Help: "Webhook ingestion outcomes."},
		[]string{"result"},
	)
)
