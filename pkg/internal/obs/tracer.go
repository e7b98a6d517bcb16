// Package obs wires OpenTelemetry tracing the way the rest of the ambient
// stack expects it: one tracer per instrumented package, spans opened
// around a single unit of work, base attributes that never include secret
// material.
package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global TracerProvider. Callers
// typically hold one per package (e.g. "conduit/provider", "conduit/chat").
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span and returns the updated context plus an end
// function that records err (if any) on the span before ending it.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// BaseAttributes returns the common set of attributes attached to every
// provider-kernel span. Auth material is never included here by
// construction: callers pass provider/model identity only.
func BaseAttributes(provider, modelID string, streaming bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conduit.provider", provider),
		attribute.String("conduit.model", modelID),
		attribute.Bool("conduit.streaming", streaming),
	}
}
