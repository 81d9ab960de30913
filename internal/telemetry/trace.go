package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
// Usage:
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "run")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartProviderSpan creates a span for a provider API call.
func StartProviderSpan(ctx context.Context, providerName, operation string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("providers")
	ctx, span := tracer.Start(ctx, "provider."+operation)

	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("operation", operation),
		attribute.String("component", "provider"),
	)

	return ctx, span
}

// StartOracleSpan creates a span covering one oracle invocation, retries included.
func StartOracleSpan(ctx context.Context, oracle string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("oracles")
	ctx, span := tracer.Start(ctx, "oracle."+oracle)

	span.SetAttributes(
		attribute.String("oracle", oracle),
		attribute.String("component", "engine"),
	)

	return ctx, span
}

// StartStepSpan creates a span for the execution of one migration step.
//
// Usage:
//
//	ctx, span := telemetry.StartStepSpan(ctx, step.StepID, step.ToVersion)
//	defer span.End()
func StartStepSpan(ctx context.Context, stepID int, toVersion string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("engine")
	ctx, span := tracer.Start(ctx, "engine.step")

	span.SetAttributes(
		attribute.Int("step_id", stepID),
		attribute.String("to_version", toVersion),
		attribute.String("component", "engine"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
// This should be called when an operation fails.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}

// RecordDuration records the duration of an operation as a span attribute.
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64(name+"_ms", duration.Milliseconds()),
	)
}
