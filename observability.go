package validity

import (
	"context"
	"time"
)

// Observability receives lifecycle and emission callbacks from a Projection.
// See the otel sub-package for an OpenTelemetry implementation.
type Observability interface {
	// OnCreate is called once a projection is built, before it subscribes
	OnCreate(ctx context.Context, projectionID string)

	// OnEmissionStart is called when an emission is about to be applied
	OnEmissionStart(ctx context.Context, projectionID string, state State) context.Context

	// OnEmissionComplete is called after the cache is updated and all
	// synchronous subscribers have been notified
	OnEmissionComplete(ctx context.Context, duration time.Duration)

	// OnEmissionDropped is called for emissions discarded because the
	// projection was disposed
	OnEmissionDropped(ctx context.Context, projectionID string, count int)

	// OnDispose is called once, when the projection is disposed
	OnDispose(ctx context.Context, projectionID string, lifetime time.Duration)
}
