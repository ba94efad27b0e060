// Package telemetry sets up OpenTelemetry tracing and metrics and holds the
// counters the record engine reports.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ScopeName is the instrumentation scope for tracers and meters.
const ScopeName = "github.com/Shivanand-hulikatti/ekiden-tracker"

// Config configures the exporters.
type Config struct {
	ServiceName string
	Endpoint    string
	Enabled     bool
}

// Setup installs global tracer and meter providers exporting over OTLP gRPC.
// When disabled it leaves the no-op globals in place. The returned function
// flushes and stops the providers.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		logger.InfoContext(ctx, "telemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName))

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(5*time.Second)),
	)

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.InfoContext(ctx, "telemetry enabled", "endpoint", cfg.Endpoint, "service", cfg.ServiceName)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// Metrics are the record engine's counters.
type Metrics struct {
	recordsCreated metric.Int64Counter
	autoCompleted  metric.Int64Counter
	rejections     metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(ScopeName)

	recordsCreated, err := meter.Int64Counter("ekiden.records.created",
		metric.WithDescription("Checkpoint records written, including auto-completions"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	autoCompleted, err := meter.Int64Counter("ekiden.records.auto_completed",
		metric.WithDescription("Records synthesised for skipped earlier checkpoints"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("ekiden.submissions.rejected",
		metric.WithDescription("Team submissions rejected, by kind"),
		metric.WithUnit("{submission}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{recordsCreated: recordsCreated, autoCompleted: autoCompleted, rejections: rejections}, nil
}

// RecordsCreated counts written records for an event.
func (m *Metrics) RecordsCreated(ctx context.Context, eventID string, total, auto int) {
	attrs := metric.WithAttributes(attribute.String("event.id", eventID))
	m.recordsCreated.Add(ctx, int64(total), attrs)
	if auto > 0 {
		m.autoCompleted.Add(ctx, int64(auto), attrs)
	}
}

// Rejected counts one rejected team submission.
func (m *Metrics) Rejected(ctx context.Context, eventID, kind string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("reason", kind),
	))
}
