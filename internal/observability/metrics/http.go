// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/storm-intake/internal/logger"
)

// HTTPMetrics contains Prometheus metrics for HTTP handler operations
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestErrors   *prometheus.CounterVec
	httpResponseSize    *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// Authentication metrics
	authOperationsTotal *prometheus.CounterVec

	// Template rendering metrics
	templateRenderDuration *prometheus.HistogramVec
	templateRenderErrors   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, never the raw URL
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP request errors",
		},
		[]string{"method", "path", "error_type"}, // error_type: client, server, csrf, auth
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor10, BucketCount6), // 100B to ~10MB
		},
		[]string{"method", "path"},
	)

	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	m.authOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_auth_operations_total",
			Help: "Total number of admin authentication attempts",
		},
		[]string{"status"},
	)

	m.templateRenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_template_render_duration_seconds",
			Help:    "Time taken to render templates",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~2s
		},
		[]string{"template"},
	)

	m.templateRenderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_template_render_errors_total",
			Help: "Total number of template render errors",
		},
		[]string{"template"},
	)
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestErrors,
		m.httpResponseSize,
		m.httpInFlight,
		m.authOperationsTotal,
		m.templateRenderDuration,
		m.templateRenderErrors,
	}
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordHTTPRequest records a served request
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordHTTPRequestError records a failed request
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	m.httpRequestErrors.WithLabelValues(method, path, errorType).Inc()
}

// RecordHTTPResponseSize records the response body size
func (m *HTTPMetrics) RecordHTTPResponseSize(method, path string, sizeBytes int64) {
	m.httpResponseSize.WithLabelValues(method, path).Observe(float64(sizeBytes))
}

// RequestStarted increments the in-flight gauge
func (m *HTTPMetrics) RequestStarted() {
	m.httpInFlight.Inc()
}

// RequestFinished decrements the in-flight gauge
func (m *HTTPMetrics) RequestFinished() {
	m.httpInFlight.Dec()
}

// RecordAuthOperation records an admin login attempt
func (m *HTTPMetrics) RecordAuthOperation(status string) {
	m.authOperationsTotal.WithLabelValues(status).Inc()
}

// RecordTemplateRender records a template render
func (m *HTTPMetrics) RecordTemplateRender(template string, duration float64) {
	m.templateRenderDuration.WithLabelValues(template).Observe(duration)
}

// RecordTemplateRenderError records a failed template render
func (m *HTTPMetrics) RecordTemplateRenderError(template string) {
	m.templateRenderErrors.WithLabelValues(template).Inc()
}

// GetInFlightRequests returns the current number of in-flight requests
func (m *HTTPMetrics) GetInFlightRequests() float64 {
	metric := &dto.Metric{}
	if err := m.httpInFlight.Write(metric); err != nil {
		GetLogger().Warn("failed to read in-flight gauge", logger.Error(err))
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}
