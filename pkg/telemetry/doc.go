// Package telemetry provides observability instrumentation for urlcat.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind a single Telemetry value
// that is carried in the invocation context.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Level = "debug"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// Loggers are derived per component and per object:
//
//	logger := tel.Logger.NewComponentLogger("runner")
//	logger = logger.WithRunID(runID).WithObject("blocked-sites", "vsys:vsys1")
//	logger.Info("Reconciling")
//
// Logs go to stderr by default so command output on stdout stays parseable.
//
// # Distributed Tracing
//
// Each invocation opens a root span and each device call a client span:
//
//	ctx, span := tel.Tracer.StartInvocationSpan(ctx, runID, name, scope)
//	defer span.End()
//
//	err := telemetry.RecordDeviceOperation(ctx, "xmlapi", "list", func(ctx context.Context) error {
//	    listing, err = session.List(ctx)
//	    return err
//	})
//
// Exporters: "stdout" (pretty-printed JSON), "otlp" (gRPC) and "none".
// Tracing is disabled by default.
//
// # Metrics
//
// Key metrics exposed under the "urlcat" namespace:
//
//   - urlcat_invocations_total{status}
//   - urlcat_invocation_duration_seconds{status}
//   - urlcat_reconciliations_total{operation,status}
//   - urlcat_commits_total{status}
//   - urlcat_device_calls_total{transport,operation}
//   - urlcat_device_call_duration_seconds{transport,operation}
//   - urlcat_device_errors_total{transport,operation}
//   - urlcat_errors_total{code}
//   - urlcat_policy_violations_total{policy,severity}
//   - urlcat_watch_triggers_total{trigger}
//
// The HTTP endpoint is only started when MetricsConfig.ListenAddress is set,
// which the CLI does in watch mode.
package telemetry
