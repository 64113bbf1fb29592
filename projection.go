package validity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Projection keeps the latest validity flag and message set of a Source.
//
// It subscribes to the source once, in NewProjection, and holds that
// subscription until Dispose. Each emission updates both cached values
// together and is then forwarded to Changes, WhenIsValid and WhenMessage.
// Emissions are applied one at a time in arrival order, including ones
// published concurrently or from inside a handler.
type Projection struct {
	id      string
	logger  *slog.Logger
	obs     Observability
	created time.Time

	mu        sync.RWMutex
	isValid   bool
	message   Text
	evaluated bool
	disposed  bool
	draining  bool
	queue     []State

	changes     *Stream[State]
	validity    *Stream[bool]
	messages    *Stream[Text]
	disposables *Disposables
}

// NewProjection creates a projection of source and subscribes to it.
// It returns an error wrapping ErrInvalidArgument when source is nil.
func NewProjection(source Source, opts ...Option) (*Projection, error) {
	if isNil(source) {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidArgument)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	logger := cfg.logger.With(slog.String("projection_id", cfg.id))
	p := &Projection{
		id:          cfg.id,
		logger:      logger,
		obs:         cfg.observability,
		created:     time.Now(),
		disposables: NewDisposables(),
	}
	p.disposables.OnPanic(func(r any) {
		p.logger.Error("release action panicked", slog.Any("panic", r))
	})

	p.changes = NewStream(
		WithCopy(State.Clone),
		WithPanicHandler[State](cfg.panicHandler),
		WithStreamLogger[State](logger),
	)
	p.validity = NewStream(
		WithReplayLatest[bool](),
		WithDistinct(func(a, b bool) bool { return a == b }),
		WithPanicHandler[bool](cfg.panicHandler),
		WithStreamLogger[bool](logger),
	)
	p.messages = NewStream(
		WithReplayLatest[Text](),
		WithDistinct(Text.Equal),
		WithCopy(Text.Clone),
		WithPanicHandler[Text](cfg.panicHandler),
		WithStreamLogger[Text](logger),
	)
	p.disposables.AddFunc(p.changes.Close)
	p.disposables.AddFunc(p.validity.Close)
	p.disposables.AddFunc(p.messages.Close)

	if p.obs != nil {
		p.obs.OnCreate(context.Background(), p.id)
	}

	sub, err := source.Subscribe(p.onNext)
	if err != nil {
		p.disposables.Add(sub)
		p.Dispose()
		return nil, fmt.Errorf("validity: subscribe to source: %w", err)
	}
	// A source that emitted synchronously may already have led to Dispose;
	// Add then releases the subscription straight away.
	p.disposables.Add(sub)

	p.logger.Debug("projection subscribed")
	return p, nil
}

// onNext is the single upstream handler
func (p *Projection) onNext(state State) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		p.dropped(1)
		return
	}
	p.queue = append(p.queue, state.Clone())
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	p.drain()
}

// drain applies queued emissions until the queue is empty. Only one
// goroutine drains at a time; others just enqueue.
func (p *Projection) drain() {
	for {
		p.mu.Lock()
		if p.disposed || len(p.queue) == 0 {
			p.draining = false
			p.queue = nil
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue[0] = State{}
		p.queue = p.queue[1:]

		p.isValid = next.IsValid
		p.message = next.Text
		p.evaluated = true
		p.mu.Unlock()

		p.publish(next)
	}
}

func (p *Projection) publish(state State) {
	ctx := context.Background()
	start := time.Now()
	if p.obs != nil {
		ctx = p.obs.OnEmissionStart(ctx, p.id, state)
	}

	p.changes.PublishContext(ctx, state)
	p.validity.PublishContext(ctx, state.IsValid)
	p.messages.PublishContext(ctx, state.Text)

	if p.obs != nil {
		p.obs.OnEmissionComplete(ctx, time.Since(start))
	}
}

func (p *Projection) dropped(count int) {
	if count == 0 {
		return
	}
	if p.logger != nil {
		p.logger.Debug("emission dropped after dispose", slog.Int("count", count))
	}
	if p.obs != nil {
		p.obs.OnEmissionDropped(context.Background(), p.id, count)
	}
}

// ID returns the projection ID
func (p *Projection) ID() string {
	return p.id
}

// IsValid returns the validity flag of the latest emission.
// Before the first emission it returns false: not yet evaluated counts
// as invalid.
func (p *Projection) IsValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isValid
}

// Message returns the message set of the latest emission.
// ok is false until the first emission arrives.
func (p *Projection) Message() (text Text, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.evaluated {
		return nil, false
	}
	return p.message.Clone(), true
}

// Snapshot returns the validity flag and message set of the latest
// emission as a single State. ok is false until the first emission.
func (p *Projection) Snapshot() (state State, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.evaluated {
		return State{}, false
	}
	return State{IsValid: p.isValid, Text: p.message.Clone()}, true
}

// Changes returns the stream of states received from the source.
// Each state is delivered after the cache has been updated with it, so
// IsValid and Message called from a handler agree with the delivered state.
// Every handler receives its own copy of the message set.
// The stream goes silent once the projection is disposed.
func (p *Projection) Changes() Observable[State] {
	return p.changes
}

// WhenIsValid returns the validity flag as a stream. New subscribers get the
// current value immediately once the source has emitted; afterwards only
// actual changes are delivered.
func (p *Projection) WhenIsValid() Observable[bool] {
	return p.validity
}

// WhenMessage returns the message set as a stream, with the same replay and
// change-only rules as WhenIsValid.
func (p *Projection) WhenMessage() Observable[Text] {
	return p.messages
}

// IsDisposed reports whether Dispose has been called
func (p *Projection) IsDisposed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disposed
}

// Dispose releases the subscription to the source and closes all streams
// exposed by the projection. The source itself keeps running.
//
// Once Dispose returns, the cached values no longer change and no new
// delivery starts; queued emissions are discarded. Dispose may be called
// more than once and from inside a handler.
func (p *Projection) Dispose() {
	if p == nil {
		return
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	discarded := len(p.queue)
	p.queue = nil
	p.mu.Unlock()

	if p.disposables != nil {
		p.disposables.Dispose()
	}
	p.dropped(discarded)

	if p.logger != nil {
		p.logger.Debug("projection disposed")
	}
	if p.obs != nil {
		p.obs.OnDispose(context.Background(), p.id, time.Since(p.created))
	}
}
