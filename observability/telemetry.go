// Package observability provides OpenTelemetry tracing and metrics for
// command execution.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig configures telemetry.
type TelemetryConfig struct {
	// ServiceName is the tracer and meter name.
	ServiceName string

	// EnableTracing enables span creation.
	EnableTracing bool

	// EnableMetrics enables metric recording.
	EnableMetrics bool

	// MetricsPrefix prefixes every metric name.
	MetricsPrefix string
}

// DefaultTelemetryConfig returns the default configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:   "secure-automation",
		EnableTracing: true,
		EnableMetrics: true,
		MetricsPrefix: "secureauto_",
	}
}

// Telemetry records spans and execution metrics.
type Telemetry interface {
	// StartSpan starts a trace span; the returned func ends it.
	StartSpan(ctx context.Context, name string) (context.Context, func())

	// RecordExecution records one command execution outcome.
	RecordExecution(binary, status string, duration time.Duration)
}

type telemetry struct {
	config TelemetryConfig
	tracer trace.Tracer
	meter  metric.Meter

	executions metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewTelemetry creates a Telemetry backed by the global OpenTelemetry
// providers.
func NewTelemetry(config TelemetryConfig) (Telemetry, error) {
	t := &telemetry{
		config: config,
		tracer: otel.Tracer(config.ServiceName),
		meter:  otel.Meter(config.ServiceName),
	}

	var err error
	t.executions, err = t.meter.Int64Counter(
		config.MetricsPrefix+"executions_total",
		metric.WithDescription("Total number of command executions by status"),
	)
	if err != nil {
		return nil, err
	}

	t.durations, err = t.meter.Float64Histogram(
		config.MetricsPrefix+"execution_duration_seconds",
		metric.WithDescription("Duration of command executions"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// StartSpan implements Telemetry.StartSpan.
func (t *telemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if !t.config.EnableTracing {
		return ctx, func() {}
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, func() { span.End() }
}

// RecordExecution implements Telemetry.RecordExecution.
func (t *telemetry) RecordExecution(binary, status string, duration time.Duration) {
	if !t.config.EnableMetrics {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("binary", binary),
		attribute.String("status", status),
	)
	t.executions.Add(context.Background(), 1, attrs)
	t.durations.Record(context.Background(), duration.Seconds(), attrs)
}

// NoopTelemetry returns a no-op telemetry implementation.
func NoopTelemetry() Telemetry {
	return &noopTelemetry{}
}

type noopTelemetry struct{}

func (t *noopTelemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *noopTelemetry) RecordExecution(binary, status string, duration time.Duration) {}
