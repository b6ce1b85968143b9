package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Keysage.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// LLM metrics.
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec

	// Intent classification metrics.
	IntentClassificationsTotal *prometheus.CounterVec

	// Akeyless upstream metrics.
	AkeylessRequestsTotal   *prometheus.CounterVec
	AkeylessRequestDuration *prometheus.HistogramVec

	// Secret operation metrics.
	SecretOperationsTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total LLM API requests.",
		}, []string{"provider", "model", "status"}),

		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keysage",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM API request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total LLM tokens consumed.",
		}, []string{"provider", "model", "direction"}),

		IntentClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "intent",
			Name:      "classifications_total",
			Help:      "Total intent classifications by resolved intent.",
		}, []string{"intent"}),

		AkeylessRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "akeyless",
			Name:      "requests_total",
			Help:      "Total Akeyless API requests.",
		}, []string{"operation", "status"}),

		AkeylessRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keysage",
			Subsystem: "akeyless",
			Name:      "request_duration_seconds",
			Help:      "Akeyless API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		SecretOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "secrets",
			Name:      "operations_total",
			Help:      "Total secret façade operations.",
		}, []string{"operation", "status"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keysage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keysage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keysage",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensUsed,
		m.IntentClassificationsTotal,
		m.AkeylessRequestsTotal,
		m.AkeylessRequestDuration,
		m.SecretOperationsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
