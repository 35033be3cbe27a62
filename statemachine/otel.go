package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startStartSpan creates the span covering a machine start, entry chain
// and descent included. The caller is responsible for ending the span.
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startStartSpan(ctx context.Context, machine string, state StateID) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.start")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("state", string(state)),
	)

	return ctx, span
}

// startProcessSpan creates the span covering one message dispatch.
// The caller is responsible for ending the span.
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startProcessSpan(ctx context.Context, machine string, state StateID) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.process")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("from_state", string(state)),
	)

	return ctx, span
}

// startStopSpan creates the span covering an explicit stop.
// The caller is responsible for ending the span.
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startStopSpan(ctx context.Context, machine string, state StateID) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.stop")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("from_state", string(state)),
	)

	return ctx, span
}

// finishSpan records the outcome on a span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
