package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics contains Prometheus metrics for report submissions
type IntakeMetrics struct {
	registry *prometheus.Registry

	submissionsTotal     *prometheus.CounterVec
	submissionDuration   *prometheus.HistogramVec
	filesTotal           *prometheus.CounterVec
	fileSizeBytes        prometheus.Histogram
	notificationsTotal   *prometheus.CounterVec
	notificationFailures prometheus.Counter
	notificationDuration prometheus.Histogram
	schemaRepairsTotal   *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewIntakeMetrics creates and registers new intake metrics
func NewIntakeMetrics(registry *prometheus.Registry) (*IntakeMetrics, error) {
	m := &IntakeMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *IntakeMetrics) initMetrics() {
	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Total number of defect report submissions",
		},
		[]string{"outcome"}, // outcome: succeeded, rejected, failed
	)

	m.submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_submission_duration_seconds",
			Help:    "Time taken to process a submission",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"outcome"},
	)

	m.filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_files_total",
			Help: "Total number of uploaded attachments by result",
		},
		[]string{"result"}, // result: stored, rejected, error
	)

	m.fileSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_file_size_bytes",
			Help:    "Size of stored attachments",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10), // 1KB to ~256MB
		},
	)

	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_notifications_total",
			Help: "Total number of notification attempts",
		},
		[]string{"status"},
	)

	m.notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_notification_failures_total",
			Help: "Total number of failed notification deliveries",
		},
	)

	m.notificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_notification_duration_seconds",
			Help:    "Time taken to deliver a notification",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
	)

	m.schemaRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_schema_repairs_total",
			Help: "Total number of schema check and repair runs",
		},
		[]string{"status"},
	)

	m.collectors = []prometheus.Collector{
		m.submissionsTotal,
		m.submissionDuration,
		m.filesTotal,
		m.fileSizeBytes,
		m.notificationsTotal,
		m.notificationFailures,
		m.notificationDuration,
		m.schemaRepairsTotal,
	}
}

// Describe implements the Collector interface
func (m *IntakeMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *IntakeMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSubmission records a finished submission and its duration in seconds
func (m *IntakeMetrics) RecordSubmission(outcome string, duration float64) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordFile records the result of one uploaded attachment
func (m *IntakeMetrics) RecordFile(result string, sizeBytes int64) {
	m.filesTotal.WithLabelValues(result).Inc()
	if result == FileStored && sizeBytes > 0 {
		m.fileSizeBytes.Observe(float64(sizeBytes))
	}
}

// RecordNotification records a notification attempt
func (m *IntakeMetrics) RecordNotification(err error, duration float64) {
	if err != nil {
		m.notificationsTotal.WithLabelValues("error").Inc()
		m.notificationFailures.Inc()
	} else {
		m.notificationsTotal.WithLabelValues("success").Inc()
	}
	m.notificationDuration.Observe(duration)
}

// RecordSchemaRepair records an EnsureSchema run
func (m *IntakeMetrics) RecordSchemaRepair(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.schemaRepairsTotal.WithLabelValues(status).Inc()
}
