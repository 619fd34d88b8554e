package logging

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if model := ModelFromContext(ctx); model != "" {
		fields = append(fields, zap.String("model.name", model))
	}

	if id := LoadIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("load.id", id))
	}

	return fields
}

type modelCtxKey struct{}
type loadIDCtxKey struct{}
type loggerCtxKey struct{}

// WithModel adds the model name being encrypted or loaded to context.
func WithModel(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, modelCtxKey{}, name)
}

// ModelFromContext extracts the model name from context.
func ModelFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(modelCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// NewLoadID returns a fresh identifier correlating one decrypt-and-load run.
func NewLoadID() string {
	return uuid.NewString()
}

// WithLoadID adds a load correlation ID to context.
func WithLoadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, loadIDCtxKey{}, id)
}

// LoadIDFromContext extracts the load ID from context.
func LoadIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(loadIDCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
