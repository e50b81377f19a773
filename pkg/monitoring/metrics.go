package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Contract invocation metrics
	contractInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_invocations_total",
			Help: "Total number of registry contract invocations",
		},
		[]string{"contract", "operation", "status", "service"},
	)

	contractInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contract_invocation_duration_seconds",
			Help:    "Duration of registry contract invocations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"contract", "operation", "service"},
	)

	contractRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_rejections_total",
			Help: "Total number of contract invocations rejected by a business rule",
		},
		[]string{"contract", "operation", "code", "service"},
	)

	// Ledger event metrics
	ledgerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_total",
			Help: "Total number of contract events emitted by committed invocations",
		},
		[]string{"event", "service"},
	)

	eventSinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_sink_errors_total",
			Help: "Total number of event sink write failures",
		},
		[]string{"sink", "service"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status", "service"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

var registerOnce sync.Once

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	registerOnce.Do(registerMetrics)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

func registerMetrics() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		contractInvocationsTotal,
		contractInvocationDuration,
		contractRejectionsTotal,
		ledgerEventsTotal,
		eventSinkErrors,
		authAttemptsTotal,
	)
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordContractInvocation records a contract invocation and its outcome
func (m *MetricsCollector) RecordContractInvocation(contract, operation, status string, duration time.Duration) {
	contractInvocationsTotal.WithLabelValues(contract, operation, status, m.serviceName).Inc()
	contractInvocationDuration.WithLabelValues(contract, operation, m.serviceName).Observe(duration.Seconds())
}

// RecordContractRejection records a business-rule rejection by error code
func (m *MetricsCollector) RecordContractRejection(contract, operation, code string) {
	contractRejectionsTotal.WithLabelValues(contract, operation, code, m.serviceName).Inc()
}

// RecordLedgerEvent records an emitted contract event
func (m *MetricsCollector) RecordLedgerEvent(event string) {
	ledgerEventsTotal.WithLabelValues(event, m.serviceName).Inc()
}

// RecordEventSinkError records an event sink write failure
func (m *MetricsCollector) RecordEventSinkError(sink string) {
	eventSinkErrors.WithLabelValues(sink, m.serviceName).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(status string) {
	authAttemptsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
