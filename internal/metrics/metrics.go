package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the gateway.
type Metrics struct {
	Registry              *prometheus.Registry
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec
	RouterSelectionsTotal *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
	CircuitBreakerTrips   *prometheus.CounterVec
	RetryAttemptsTotal    *prometheus.CounterVec
	AdapterCallDuration   *prometheus.HistogramVec
	HealthCheckTotal      *prometheus.CounterVec
	DroppedLogsTotal      prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates and registers a new Metrics instance using a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of chat-completion requests by upstream and final status code.",
		}, []string{"upstream", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end duration of a chat-completion request, by upstream.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),

		RouterSelectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_router_selections_total",
			Help: "Router selections by upstream and reason.",
		}, []string{"upstream", "reason"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0=closed, 1=open, 2=half-open).",
		}, []string{"upstream"}),

		CircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_trips_total",
			Help: "Total number of times a circuit breaker transitioned to open, by upstream.",
		}, []string{"upstream"}),

		RetryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_retry_attempts_total",
			Help: "Total retry-layer attempts by upstream and outcome.",
		}, []string{"upstream", "outcome"}),

		AdapterCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_adapter_call_duration_seconds",
			Help:    "Duration of a single adapter call attempt, by upstream.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),

		HealthCheckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_health_check_total",
			Help: "Total health checks performed by upstream and resulting status.",
		}, []string{"upstream", "status"}),

		DroppedLogsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_dropped_logs_total",
			Help: "Total number of log entries dropped due to a full async buffer.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total HTTP requests served by the gateway, by method, path, and status code.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "End-to-end HTTP request duration, by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RouterSelectionsTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.RetryAttemptsTotal,
		m.AdapterCallDuration,
		m.HealthCheckTotal,
		m.DroppedLogsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
// using the metrics instance's dedicated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// BreakerStateValue maps a breaker state string to the gauge value used by
// gateway_circuit_breaker_state.
func BreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half_open":
		return 2
	default:
		return 0
	}
}
