// Package validity projects a stream of validation states into two cached,
// observable values: a validity flag and the current message set.
//
// # Sources
//
// A Source is anything that can be subscribed to for State values. Stream is
// the in-process implementation:
//
//	src := validity.NewStream(validity.WithReplayLatest[validity.State]())
//	src.Publish(validity.Invalid("Required"))
//
// Any other producer can be adapted with SourceFunc.
//
// # Projections
//
//	p, err := validity.NewProjection(src, validity.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Dispose()
//
//	p.IsValid()          // false until the source emits a valid state
//	text, ok := p.Message()
//
// Reading IsValid and Message never blocks. Both values always come from the
// same emission; use Snapshot to read them as one State.
//
// To react instead of poll, subscribe to Changes for every raw State, or to
// WhenIsValid and WhenMessage for the derived values. The derived streams
// replay their current value to new subscribers and only emit on change.
//
// # Teardown
//
// Dispose releases the projection's subscription to the source, closes every
// stream the projection exposes and discards emissions still in flight. It is
// idempotent and never fails. The source is not stopped, since other
// consumers may depend on it.
package validity
