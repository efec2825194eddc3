package health

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/consilium-ai/consilium/internal/health"

// Metrics holds the OpenTelemetry instruments for the health subsystem.
type Metrics struct {
	probeDuration metric.Float64Histogram
	probeTotal    metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewMetrics creates the health metrics instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	probeDuration, err := meter.Float64Histogram(
		"provider.probe.duration",
		metric.WithDescription("Duration of provider health probes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	probeTotal, err := meter.Int64Counter(
		"provider.probe.total",
		metric.WithDescription("Total number of provider health probes"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"health.aggregation.duration",
		metric.WithDescription("Duration of health aggregation runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		probeDuration: probeDuration,
		probeTotal:    probeTotal,
		runDuration:   runDuration,
	}, nil
}

// RecordProbe records one probe outcome.
func (m *Metrics) RecordProbe(providerID string, errorKind string, success, skipped bool, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider.id", providerID),
		attribute.Bool("success", success),
	}
	if skipped {
		attrs = append(attrs, attribute.Bool("breaker.skipped", true))
	}
	if !success {
		attrs = append(attrs, attribute.String("error.kind", errorKind))
	}

	// Background context: probe contexts may already be cancelled.
	ctx := context.Background()
	m.probeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !skipped {
		m.probeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordRun records one aggregation run.
func (m *Metrics) RecordRun(overall Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(attribute.String("status", string(overall))))
}
