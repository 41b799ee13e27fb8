package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for urlcat invocations.
// A Metrics built with Enabled=false accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	// Invocation metrics
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	activeInvocations  prometheus.Gauge

	// Reconciliation outcome
	reconciliations *prometheus.CounterVec
	commits         *prometheus.CounterVec

	// Device metrics
	deviceCalls        *prometheus.CounterVec
	deviceCallDuration *prometheus.HistogramVec
	deviceErrors       *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	// Guard rails and watch mode
	policyViolations *prometheus.CounterVec
	watchTriggers    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
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

		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of completed invocations by final status",
			},
			[]string{"status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Duration of a full invocation in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeInvocations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_invocations",
				Help:      "Number of invocations in progress",
			},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Total number of reconciliations by operation and status",
			},
			[]string{"operation", "status"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Total number of commits by status",
			},
			[]string{"status"},
		),
		deviceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_calls_total",
				Help:      "Total number of device calls",
			},
			[]string{"transport", "operation"},
		),
		deviceCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "device_call_duration_seconds",
				Help:      "Duration of device calls in seconds",
				Buckets:   buckets,
			},
			[]string{"transport", "operation"},
		),
		deviceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_errors_total",
				Help:      "Total number of failed device calls",
			},
			[]string{"transport", "operation"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed invocations by error code",
			},
			[]string{"code"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
		watchTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_triggers_total",
				Help:      "Total number of watch-mode re-runs by trigger",
			},
			[]string{"trigger"},
		),
	}

	registry.MustRegister(
		m.invocations,
		m.invocationDuration,
		m.activeInvocations,
		m.reconciliations,
		m.commits,
		m.deviceCalls,
		m.deviceCallDuration,
		m.deviceErrors,
		m.errorsByCode,
		m.policyViolations,
		m.watchTriggers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m, nil
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInvocationStarted marks an invocation as in progress.
func (m *Metrics) RecordInvocationStarted() {
	if m.activeInvocations == nil {
		return
	}
	m.activeInvocations.Inc()
}

// RecordInvocationCompleted records a finished invocation with its status and duration.
func (m *Metrics) RecordInvocationCompleted(status string, duration time.Duration) {
	if m.invocations == nil {
		return
	}
	m.invocations.WithLabelValues(status).Inc()
	m.invocationDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeInvocations.Dec()
}

// RecordReconciliation records the operation a reconciliation decided on.
func (m *Metrics) RecordReconciliation(operation, status string) {
	if m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(operation, status).Inc()
}

// RecordCommit records a commit outcome.
func (m *Metrics) RecordCommit(status string) {
	if m.commits == nil {
		return
	}
	m.commits.WithLabelValues(status).Inc()
}

// RecordDeviceCall records a device call with its duration.
func (m *Metrics) RecordDeviceCall(transport, operation string, duration time.Duration) {
	if m.deviceCalls == nil {
		return
	}
	m.deviceCalls.WithLabelValues(transport, operation).Inc()
	m.deviceCallDuration.WithLabelValues(transport, operation).Observe(duration.Seconds())
}

// RecordDeviceError records a failed device call.
func (m *Metrics) RecordDeviceError(transport, operation string) {
	if m.deviceErrors == nil {
		return
	}
	m.deviceErrors.WithLabelValues(transport, operation).Inc()
}

// RecordError records a failed invocation by error code.
func (m *Metrics) RecordError(code string) {
	if m.errorsByCode == nil || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordPolicyViolation records one policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordWatchTrigger records a watch-mode re-run.
func (m *Metrics) RecordWatchTrigger(trigger string) {
	if m.watchTriggers == nil {
		return
	}
	m.watchTriggers.WithLabelValues(trigger).Inc()
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
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer binds the configured listen address and serves metrics
// until ctx is cancelled. It returns nil, nil when metrics are disabled or no
// address is configured. Bind errors are returned synchronously.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger *Logger) (net.Addr, error) {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil, nil
	}

	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Serving metrics on http://%s%s", listener.Addr(), m.config.Path)
	return listener.Addr(), nil
}
