package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for bundlekeeper.
type Metrics struct {
	config MetricsConfig

	// Job metrics
	jobsStarted   *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec

	// Component job metrics
	componentJobs     *prometheus.CounterVec
	componentDuration *prometheus.HistogramVec
	rollbacks         *prometheus.CounterVec

	// Client metrics
	clientCalls    *prometheus.CounterVec
	clientDuration *prometheus.HistogramVec
	clientErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Registry metrics
	installedComponents *prometheus.GaugeVec

	// System metrics
	activeJobs prometheus.Gauge
	staleJobs  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		jobsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_started_total",
				Help:      "Total number of jobs started",
			},
			[]string{"type"},
		),
		jobsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_completed_total",
				Help:      "Total number of jobs that reached a terminal status",
			},
			[]string{"type", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of job execution in seconds",
				Buckets:   buckets,
			},
			[]string{"type", "status"},
		),

		componentJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_jobs_total",
				Help:      "Total number of component operations recorded",
			},
			[]string{"component_type", "status"},
		),
		componentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_job_duration_seconds",
				Help:      "Duration of component operations in seconds",
				Buckets:   buckets,
			},
			[]string{"component_type", "direction"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total number of rollback passes by outcome",
			},
			[]string{"status"},
		),

		clientCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_calls_total",
				Help:      "Total number of engine and cluster client calls",
			},
			[]string{"client", "operation"},
		),
		clientDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "client_call_duration_seconds",
				Help:      "Duration of client calls in seconds",
				Buckets:   buckets,
			},
			[]string{"client", "operation"},
		),
		clientErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_errors_total",
				Help:      "Total number of client call errors",
			},
			[]string{"client", "operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		installedComponents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "installed_components",
				Help:      "Current number of installed components per bundle",
			},
			[]string{"bundle"},
		),

		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Current number of running jobs",
			},
		),
		staleJobs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_jobs_reconciled_total",
				Help:      "Total number of jobs failed by the lease sweep",
			},
		),
	}

	registry.MustRegister(
		m.jobsStarted,
		m.jobsCompleted,
		m.jobDuration,
		m.componentJobs,
		m.componentDuration,
		m.rollbacks,
		m.clientCalls,
		m.clientDuration,
		m.clientErrors,
		m.errorsByClass,
		m.errorsByCode,
		m.installedComponents,
		m.activeJobs,
		m.staleJobs,
	)

	return m, nil
}

// Job Metrics

// RecordJobStarted increments the counter for started jobs.
func (m *Metrics) RecordJobStarted(jobType string) {
	if m == nil || m.jobsStarted == nil {
		return
	}
	m.jobsStarted.WithLabelValues(jobType).Inc()
	m.activeJobs.Inc()
}

// RecordJobCompleted records a terminal job with its status and duration.
func (m *Metrics) RecordJobCompleted(jobType, status string, duration time.Duration) {
	if m == nil || m.jobsCompleted == nil {
		return
	}
	m.jobsCompleted.WithLabelValues(jobType, status).Inc()
	m.jobDuration.WithLabelValues(jobType, status).Observe(duration.Seconds())
	m.activeJobs.Dec()
}

// Component Job Metrics

// RecordComponentJob records one component operation.
// direction is install, uninstall or rollback.
func (m *Metrics) RecordComponentJob(componentType, direction, status string, duration time.Duration) {
	if m == nil || m.componentJobs == nil {
		return
	}
	m.componentJobs.WithLabelValues(componentType, status).Inc()
	m.componentDuration.WithLabelValues(componentType, direction).Observe(duration.Seconds())
}

// RecordRollback records the outcome of one rollback pass.
func (m *Metrics) RecordRollback(status string) {
	if m == nil || m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(status).Inc()
}

// Client Metrics

// RecordClientCall records a client call with its duration.
func (m *Metrics) RecordClientCall(client, operation string, duration time.Duration) {
	if m == nil || m.clientCalls == nil {
		return
	}
	m.clientCalls.WithLabelValues(client, operation).Inc()
	m.clientDuration.WithLabelValues(client, operation).Observe(duration.Seconds())
}

// RecordClientError records a client error.
func (m *Metrics) RecordClientError(client, operation string) {
	if m == nil || m.clientErrors == nil {
		return
	}
	m.clientErrors.WithLabelValues(client, operation).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Registry Metrics

// SetInstalledComponents sets the number of components a bundle owns.
func (m *Metrics) SetInstalledComponents(bundle string, count float64) {
	if m == nil || m.installedComponents == nil {
		return
	}
	m.installedComponents.WithLabelValues(bundle).Set(count)
}

// System Metrics

// RecordStaleJob counts a job failed by the lease sweep.
func (m *Metrics) RecordStaleJob() {
	if m == nil || m.staleJobs == nil {
		return
	}
	m.staleJobs.Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
