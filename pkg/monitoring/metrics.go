package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection. Each collector owns
// its registry so several services (or tests) can coexist in one process.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	eligibilityVerdicts *prometheus.CounterVec
	stageTransitions    *prometheus.CounterVec
	authAttemptsTotal   *prometheus.CounterVec
	profileUpdates      *prometheus.CounterVec
	wizardSessions      prometheus.Gauge
	systemErrors        *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "service"},
		),
		eligibilityVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eligibility_verdicts_total",
				Help: "Total number of eligibility verdicts by result",
			},
			[]string{"result", "service"},
		),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stage_transitions_total",
				Help: "Total number of patient stage transitions",
			},
			[]string{"from", "to", "service"},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"method", "status", "service"},
		),
		profileUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_updates_total",
				Help: "Total number of patient profile updates by source",
			},
			[]string{"source", "service"},
		),
		wizardSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wizard_sessions_active",
				Help: "Number of live eligibility wizard sessions",
			},
		),
		systemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "system_errors_total",
				Help: "Total number of system errors",
			},
			[]string{"error_type", "service", "component"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eligibilityVerdicts,
		m.stageTransitions,
		m.authAttemptsTotal,
		m.profileUpdates,
		m.wizardSessions,
		m.systemErrors,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordEligibilityVerdict records the outcome of an eligibility check
func (m *MetricsCollector) RecordEligibilityVerdict(eligible bool) {
	result := "not_eligible"
	if eligible {
		result = "eligible"
	}
	m.eligibilityVerdicts.WithLabelValues(result, m.serviceName).Inc()
}

// RecordStageTransition records a patient moving between funnel stages
func (m *MetricsCollector) RecordStageTransition(from, to string) {
	m.stageTransitions.WithLabelValues(from, to, m.serviceName).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	m.authAttemptsTotal.WithLabelValues(method, status, m.serviceName).Inc()
}

// RecordProfileUpdate records a committed profile patch
func (m *MetricsCollector) RecordProfileUpdate(source string) {
	m.profileUpdates.WithLabelValues(source, m.serviceName).Inc()
}

// SetWizardSessions sets the live wizard session gauge
func (m *MetricsCollector) SetWizardSessions(n int) {
	m.wizardSessions.Set(float64(n))
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	m.systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), time.Since(start))
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
