package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	fanoutCounter otelmetric.Int64Counter
	fanoutLatency otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	fanoutCounter, _ := meter.Int64Counter(
		"notifications.fanout.events",
		otelmetric.WithDescription("Number of fan-out events processed"),
	)

	fanoutLatency, _ := meter.Float64Histogram(
		"notifications.fanout.duration",
		otelmetric.WithDescription("Fan-out processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		fanoutCounter: fanoutCounter,
		fanoutLatency: fanoutLatency,
	}
}

func (o *Observability) RecordFanout(ctx context.Context, status string) {
	if o.fanoutCounter != nil {
		o.fanoutCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordFanoutDuration(ctx context.Context, duration time.Duration, status string) {
	if o.fanoutLatency != nil {
		o.fanoutLatency.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
