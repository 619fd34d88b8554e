package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestModelContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ModelFromContext(ctx))

	ctx = WithModel(ctx, "bert")
	assert.Equal(t, "bert", ModelFromContext(ctx))
}

func TestLoadIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, LoadIDFromContext(ctx))

	id := NewLoadID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewLoadID())

	ctx = WithLoadID(ctx, id)
	assert.Equal(t, id, LoadIDFromContext(ctx))
}

func TestContextFields_Trace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := ContextFields(ctx)
	assert.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, traceID.String(), fields[0].String)
	assert.Equal(t, "span_id", fields[1].Key)
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestLoggerContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}
