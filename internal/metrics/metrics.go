package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookIngests counts order webhooks by outcome (ok, unauthorized, invalid_input, upstream_error, ...)
	WebhookIngests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_webhook_ingests_total", Help: "Order webhooks by outcome."},
		[]string{"outcome"},
	)
	// OutboundRequests counts calls to catalog, source and carrier APIs by service and status
	OutboundRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_requests_total", Help: "Outbound API calls by service and status."},
		[]string{"service", "status"},
	)
	// OutboundLatency tracks outbound call latency in milliseconds
	OutboundLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "outbound_request_latency_ms", Help: "Outbound API call latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000}},
		[]string{"service"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookIngests)
		Registry.MustRegister(OutboundRequests)
		Registry.MustRegister(OutboundLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
