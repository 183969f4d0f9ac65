package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters recorded by the core services.
type Metrics struct {
	created    metric.Int64Counter
	collisions metric.Int64Counter
	redirects  metric.Int64Counter
}

// NewMetrics registers the service instruments on meter. A nil meter records nothing.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("shortlink")
	}
	created, err := meter.Int64Counter("shortlink.mappings.created",
		metric.WithDescription("Mappings created"))
	if err != nil {
		return nil, err
	}
	collisions, err := meter.Int64Counter("shortlink.shortcode.collisions",
		metric.WithDescription("Generated short codes rejected as already issued"))
	if err != nil {
		return nil, err
	}
	redirects, err := meter.Int64Counter("shortlink.redirects",
		metric.WithDescription("Redirect resolutions by outcome"))
	if err != nil {
		return nil, err
	}
	return &Metrics{created: created, collisions: collisions, redirects: redirects}, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(nil)
	return m
}

func (m *Metrics) mappingCreated(ctx context.Context) {
	m.created.Add(ctx, 1)
}

func (m *Metrics) codeCollision(ctx context.Context) {
	m.collisions.Add(ctx, 1)
}

func (m *Metrics) redirect(ctx context.Context, outcome string) {
	m.redirects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
