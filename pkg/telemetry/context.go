package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithJobContext creates a context enriched with job-specific telemetry.
func WithJobContext(ctx context.Context, jobID, bundleCode, jobType, user string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return FromContext(ctx).WithJobID(jobID).WithBundle(bundleCode).WithContext(ctx)
	}

	spanCtx, span := tel.Tracer.StartJobSpan(ctx, jobID, bundleCode, jobType)

	logger := tel.Logger.
		WithJobID(jobID).
		WithBundle(bundleCode).
		WithField("job_type", jobType)
	if user != "" {
		logger = logger.WithField("user", user)
	}
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordJobStarted(jobType)
	_ = tel.Events.PublishJobStarted(jobID, bundleCode, jobType, user)

	return context.WithValue(spanCtx, jobSpanKey{}, span)
}

// jobSpanKey is the context key for job spans.
type jobSpanKey struct{}

// EndJobContext completes the job context, recording metrics and events.
// duration is taken from the job record so it includes time spent before
// the worker started.
func EndJobContext(ctx context.Context, jobID, bundleCode, jobType, status string, duration time.Duration, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(jobSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrJobStatus.String(status))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	tel.Metrics.RecordJobCompleted(jobType, status, duration)

	if err != nil {
		_ = tel.Events.PublishJobFailed(jobID, bundleCode, status, err.Error())
	} else {
		_ = tel.Events.PublishJobCompleted(jobID, bundleCode, status, duration)
	}
}

// WithComponentContext creates a context enriched with component-specific
// telemetry. direction is install, uninstall or rollback.
func WithComponentContext(ctx context.Context, componentType, componentName, direction string) context.Context {
	tel := FromTelemetryContext(ctx)
	logger := FromContext(ctx).
		WithComponent(componentType, componentName).
		WithField("direction", direction)
	if tel == nil {
		return logger.WithContext(ctx)
	}

	spanCtx, span := tel.Tracer.StartComponentSpan(ctx, componentType, componentName, direction)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, componentSpanKey{}, span)
	return context.WithValue(spanCtx, componentTimerKey{}, NewTimer())
}

// componentSpanKey is the context key for component spans.
type componentSpanKey struct{}

// componentTimerKey is the context key for component timers.
type componentTimerKey struct{}

// EndComponentContext completes the component context, recording metrics and events.
func EndComponentContext(ctx context.Context, jobID, componentType, componentName, direction, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(componentSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(componentTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordComponentJob(componentType, direction, status, duration)

	component := componentType + "/" + componentName
	if err != nil {
		_ = tel.Events.PublishComponentFailed(jobID, component, direction, err.Error())
	} else {
		_ = tel.Events.PublishComponentCompleted(jobID, component, direction, duration)
	}
}

// RecordClientOperation records an engine or cluster client call with
// metrics and tracing.
func RecordClientOperation(ctx context.Context, client, operation string, fn func(ctx context.Context) error) error {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartClientSpan(ctx, client, operation)
		defer span.End()
	}

	timer := NewTimer()

	err := fn(ctx)

	if tel != nil {
		tel.Metrics.RecordClientCall(client, operation, timer.Duration())
		if err != nil {
			tel.Metrics.RecordClientError(client, operation)
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}

	return err
}
