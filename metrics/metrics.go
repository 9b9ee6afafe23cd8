// Package metrics provides Prometheus metrics for the NPS MCP server.
// It tracks tool calls, upstream NPS API traffic, pagination depth and
// the size of what is handed back to the assistant.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "nps_mcp"
)

var (
	// RequestsTotal counts total MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures request latency distribution
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing requests
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})

	// PromptsServed counts prompt template requests
	PromptsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "prompts_served_total",
		Help:      "Prompt templates returned to the host by prompt name",
	}, []string{"prompt"})

	// UpstreamRequestsTotal counts NPS API requests by resource and status class
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_requests_total",
		Help:      "NPS API requests by resource and status class",
	}, []string{"resource", "status"})

	// UpstreamLatency measures NPS API call latency by resource
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "upstream_latency_seconds",
		Help:      "NPS API call latency by resource",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource"})

	// UpstreamErrors counts failed NPS API fetches by resource and error kind
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_errors_total",
		Help:      "Failed NPS API fetches by resource and error kind",
	}, []string{"resource", "kind"})

	// PagesPerOperation measures how many pages one paginated operation needed
	PagesPerOperation = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "pages_per_operation",
		Help:      "Pages fetched per paginated operation",
		Buckets:   []float64{1, 2, 3, 5, 10, 20},
	}, []string{"operation"})

	// RecordsReturned measures how many records a tool returned
	RecordsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "records_returned",
		Help:      "Records returned per tool call",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"tool"})

	// PayloadSize tracks the text payload size handed to the host
	PayloadSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "payload_size_bytes",
		Help:      "Tool result payload size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"tool"})

	// RateLimitWaits counts requests that had to wait for the outbound throttle
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_waits_total",
		Help:      "Requests that waited for the outbound throttle",
	})

	// CircuitState exposes the circuit breaker state (0 closed, 1 open, 2 half-open)
	CircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	})
)

// RecordRequest records a completed request with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	RequestsTotal.WithLabelValues(tool, status).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordUpstreamCall records one NPS API round trip. statusCode 0 means no
// response was received.
func RecordUpstreamCall(resource string, duration float64, statusCode int) {
	UpstreamRequestsTotal.WithLabelValues(resource, StatusClass(statusCode)).Inc()
	UpstreamLatency.WithLabelValues(resource).Observe(duration)
}

// RecordUpstreamError records a failed fetch by error kind
func RecordUpstreamError(resource, kind string) {
	if kind == "" {
		return
	}
	UpstreamErrors.WithLabelValues(resource, kind).Inc()
}

// RecordToolOutput records the size of a tool result
func RecordToolOutput(tool string, records, bytes int) {
	RecordsReturned.WithLabelValues(tool).Observe(float64(records))
	PayloadSize.WithLabelValues(tool).Observe(float64(bytes))
}

// SetCircuitState updates the circuit breaker gauge
func SetCircuitState(state int) {
	CircuitState.Set(float64(state))
}

// StatusClass collapses an HTTP status into 2xx/3xx/4xx/5xx, or "none"
// when no response was received.
func StatusClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "none"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
