// Package telemetry provides observability instrumentation for bundlekeeper.
//
// The package combines structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and an in-process event publisher
// behind a single Telemetry value that travels in the context.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Everything below degrades to logging only when no Telemetry is stored in
// the context, so library code can call the helpers unconditionally.
//
// # Job and Component Instrumentation
//
// The scheduler wraps every job and every component operation:
//
//	ctx = telemetry.WithJobContext(ctx, job.ID, job.BundleCode, "INSTALL", job.User)
//	defer telemetry.EndJobContext(ctx, job.ID, job.BundleCode, "INSTALL", status, duration, err)
//
//	cctx := telemetry.WithComponentContext(ctx, "widget", "todomvc-widget", "install")
//	err := op.Install(cctx)
//	telemetry.EndComponentContext(cctx, job.ID, "widget", "todomvc-widget", "install", "COMPLETED", err)
//
// Each pair opens a span, attaches job or component fields to the context
// logger, and records the matching counters, histograms and events.
//
// # Client Calls
//
// Calls against the application engine and the cluster go through
// RecordClientOperation:
//
//	err := telemetry.RecordClientOperation(ctx, "appengine", "create_widget", func(ctx context.Context) error {
//	    return c.post(ctx, "/api/widgets", widget)
//	})
//
// # Metrics
//
// Metrics are exposed at MetricsConfig.Path (default :9090/metrics):
//
//   - bundlekeeper_jobs_started_total{type}
//   - bundlekeeper_jobs_completed_total{type,status}
//   - bundlekeeper_job_duration_seconds{type,status}
//   - bundlekeeper_component_jobs_total{component_type,status}
//   - bundlekeeper_rollbacks_total{status}
//   - bundlekeeper_client_calls_total{client,operation}
//   - bundlekeeper_errors_by_class_total{class}
//   - bundlekeeper_active_jobs
//   - bundlekeeper_stale_jobs_reconciled_total
//
// # Events
//
// The event publisher delivers job, component, rollback and lease events to
// in-process subscribers, optionally filtered:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByBundle("todomvc"))
//
// Persisted job history lives in the store; these events are for live
// observers only.
//
// # Configuration
//
// DefaultConfig and ProductionConfig cover the common
// setups. Tracing exporters are "stdout", "otlp" and "none".
package telemetry
