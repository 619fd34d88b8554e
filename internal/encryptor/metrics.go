package encryptor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/modelvault/internal/encryptor"

// Metrics holds encryption instruments.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	files    metric.Int64Counter
	bytes    metric.Int64Counter
}

// NewMetrics creates encryption instruments on meter, or on the global
// meter provider when meter is nil.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"modelvault.encrypt.file_duration_seconds",
		metric.WithDescription("Time to read, seal and write one model file"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.files, err = m.meter.Int64Counter(
		"modelvault.encrypt.files_total",
		metric.WithDescription("Model files processed by the encryptor, by outcome (ok, error)"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		m.logger.Warn("failed to create files counter", zap.Error(err))
	}

	m.bytes, err = m.meter.Int64Counter(
		"modelvault.encrypt.plaintext_bytes_total",
		metric.WithDescription("Plaintext bytes sealed into containers"),
		metric.WithUnit("By"),
	)
	if err != nil {
		m.logger.Warn("failed to create bytes counter", zap.Error(err))
	}
}

// RecordFile records the outcome of one file.
func (m *Metrics) RecordFile(ctx context.Context, duration time.Duration, size int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.files != nil {
		m.files.Add(ctx, 1, attrs)
	}
	if err == nil && m.bytes != nil {
		m.bytes.Add(ctx, int64(size))
	}
}
