package otel

import (
	"context"
	"time"

	"github.com/jilio/validity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jilio/validity"
)

// Observability implements validity.Observability using OpenTelemetry
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	activeProjections  metric.Int64UpDownCounter
	emissionCounter    metric.Int64Counter
	emissionDuration   metric.Float64Histogram
	droppedCounter     metric.Int64Counter
	projectionLifetime metric.Float64Histogram
}

// Option configures the Observability
type Option func(*Observability)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observability) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observability) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates a new OpenTelemetry observability implementation
func New(opts ...Option) (*Observability, error) {
	obs := &Observability{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	for _, opt := range opts {
		opt(obs)
	}

	var err error

	obs.activeProjections, err = obs.meter.Int64UpDownCounter(
		"validity.projection.active",
		metric.WithDescription("Number of live projections"),
		metric.WithUnit("{projection}"),
	)
	if err != nil {
		return nil, err
	}

	obs.emissionCounter, err = obs.meter.Int64Counter(
		"validity.emission.count",
		metric.WithDescription("Number of emissions applied"),
		metric.WithUnit("{emission}"),
	)
	if err != nil {
		return nil, err
	}

	obs.emissionDuration, err = obs.meter.Float64Histogram(
		"validity.emission.duration",
		metric.WithDescription("Time to apply an emission and notify synchronous subscribers"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.droppedCounter, err = obs.meter.Int64Counter(
		"validity.emission.dropped",
		metric.WithDescription("Number of emissions discarded after dispose"),
		metric.WithUnit("{emission}"),
	)
	if err != nil {
		return nil, err
	}

	obs.projectionLifetime, err = obs.meter.Float64Histogram(
		"validity.projection.lifetime",
		metric.WithDescription("Time between projection creation and dispose"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// OnCreate is called when a projection is built
func (o *Observability) OnCreate(ctx context.Context, projectionID string) {
	o.activeProjections.Add(ctx, 1)
}

// OnEmissionStart is called when an emission is about to be applied
func (o *Observability) OnEmissionStart(ctx context.Context, projectionID string, state validity.State) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("projection.id", projectionID),
		attribute.Bool("validation.is_valid", state.IsValid),
		attribute.Int("validation.message_count", state.Text.Len()),
	}

	ctx, _ = o.tracer.Start(ctx, "validity.emission",
		trace.WithAttributes(attrs...),
	)

	o.emissionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("validation.is_valid", state.IsValid),
		),
	)

	return ctx
}

// OnEmissionComplete is called after the emission has been applied
func (o *Observability) OnEmissionComplete(ctx context.Context, duration time.Duration) {
	span := trace.SpanFromContext(ctx)

	durationMs := float64(duration.Microseconds()) / 1000
	o.emissionDuration.Record(ctx, durationMs)

	span.SetStatus(codes.Ok, "")
	span.End()
}

// OnEmissionDropped is called for emissions discarded after dispose
func (o *Observability) OnEmissionDropped(ctx context.Context, projectionID string, count int) {
	o.droppedCounter.Add(ctx, int64(count))
}

// OnDispose is called once, when a projection is disposed
func (o *Observability) OnDispose(ctx context.Context, projectionID string, lifetime time.Duration) {
	o.activeProjections.Add(ctx, -1)
	o.projectionLifetime.Record(ctx, lifetime.Seconds())
}

// Ensure Observability implements validity.Observability
var _ validity.Observability = (*Observability)(nil)
