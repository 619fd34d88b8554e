package loader

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/modelvault/internal/loader"

// Span names.
const (
	SpanLoad        = "modelvault.load"
	SpanDecryptFile = "modelvault.decrypt_file"
)

func defaultTracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// recordError marks the span in ctx as failed.
func recordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}
