package validity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler is a generic value handler function
type Handler[T any] func(T)

// Observable is a sequence of values that handlers can subscribe to.
// Disposing the returned Disposable ends the subscription.
type Observable[T any] interface {
	Subscribe(handler Handler[T]) (Disposable, error)
}

// PanicHandler is called when a handler panics
type PanicHandler func(value any, panicValue any)

// SubscribeOption configures a subscription
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	once       bool
	async      bool
	sequential bool
}

// Once configures the handler to be called only once
func Once() SubscribeOption {
	return func(c *subscribeConfig) {
		c.once = true
	}
}

// Async configures the handler to run asynchronously.
// If sequential is true, values are processed one at a time in publish order;
// otherwise each value runs in its own goroutine.
func Async(sequential bool) SubscribeOption {
	return func(c *subscribeConfig) {
		c.async = true
		c.sequential = sequential
	}
}

// subscriber wraps a handler with its delivery state
type subscriber[T any] struct {
	handler  Handler[T]
	cfg      subscribeConfig
	active   atomic.Bool
	executed atomic.Bool // For once handlers, tracks if executed
	lastSeq  atomic.Uint64

	// Values waiting for a sequential async handler, in publish order
	mu      sync.Mutex
	pending []pendingValue[T]
	running bool
}

type pendingValue[T any] struct {
	ctx   context.Context
	value T
}

// claim marks seq as delivered to a synchronous subscriber. It fails when a
// newer value has already been claimed, so a subscriber never sees values go
// back in time.
func (sub *subscriber[T]) claim(seq uint64) bool {
	for {
		last := sub.lastSeq.Load()
		if seq <= last {
			return false
		}
		if sub.lastSeq.CompareAndSwap(last, seq) {
			return true
		}
	}
}

// StreamOption configures a Stream
type StreamOption[T any] func(*Stream[T])

// WithReplayLatest makes new subscribers receive the most recently
// published value immediately on subscribe.
func WithReplayLatest[T any]() StreamOption[T] {
	return func(s *Stream[T]) {
		s.replayLatest = true
	}
}

// WithDistinct suppresses values equal to the previously published one
func WithDistinct[T any](equal func(a, b T) bool) StreamOption[T] {
	return func(s *Stream[T]) {
		s.equal = equal
	}
}

// WithCopy gives every handler its own copy of each value, made with clone.
// Use it for values that share memory, such as slices.
func WithCopy[T any](clone func(T) T) StreamOption[T] {
	return func(s *Stream[T]) {
		s.clone = clone
	}
}

// WithPanicHandler sets a function to be called when a handler panics.
// Without one, panics are logged at error level.
func WithPanicHandler[T any](handler PanicHandler) StreamOption[T] {
	return func(s *Stream[T]) {
		s.panicHandler = handler
	}
}

// WithStreamLogger sets the logger for the stream
func WithStreamLogger[T any](logger *slog.Logger) StreamOption[T] {
	return func(s *Stream[T]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stream is an in-process broadcast of values of type T.
// Handlers run synchronously on the publishing goroutine, in subscription
// order, unless subscribed with Async. A synchronous handler never receives
// an older value after a newer one, even with concurrent publishers; an
// Async(true) handler receives every value in the order it was published.
type Stream[T any] struct {
	subscribers  []*subscriber[T]
	latest       T
	seq          uint64
	hasLatest    bool
	replayLatest bool
	equal        func(a, b T) bool
	clone        func(T) T
	panicHandler PanicHandler
	logger       *slog.Logger
	closed       atomic.Bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

// NewStream creates a new Stream
func NewStream[T any](opts ...StreamOption[T]) *Stream[T] {
	s := &Stream[T]{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a handler for every value published after the call,
// plus the latest value when the stream replays.
func (s *Stream[T]) Subscribe(handler Handler[T]) (Disposable, error) {
	return s.SubscribeWith(handler)
}

// SubscribeWith registers a handler with options.
// Subscribing to a closed stream succeeds but the handler is never called.
func (s *Stream[T]) SubscribeWith(handler Handler[T], opts ...SubscribeOption) (Disposable, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	sub := &subscriber[T]{handler: handler}
	for _, opt := range opts {
		opt(&sub.cfg)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return NopDisposable(), nil
	}
	sub.active.Store(true)
	s.subscribers = append(s.subscribers, sub)
	replay := s.replayLatest && s.hasLatest
	latest, seq := s.latest, s.seq
	s.mu.Unlock()

	if replay {
		s.deliver(context.Background(), []*subscriber[T]{sub}, seq, latest)
	}

	return DisposeFunc(func() { s.unsubscribe(sub) }), nil
}

// unsubscribe removes a subscriber; repeated calls are no-ops
func (s *Stream[T]) unsubscribe(sub *subscriber[T]) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}
	s.remove(sub)
}

func (s *Stream[T]) remove(target *subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*subscriber[T], 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if sub != target {
			kept = append(kept, sub)
		}
	}
	s.subscribers = kept
}

// Publish sends a value to all subscribers
func (s *Stream[T]) Publish(value T) {
	s.PublishContext(context.Background(), value)
}

// PublishContext sends a value to all subscribers. Delivery stops at the
// first subscriber reached after ctx is cancelled.
func (s *Stream[T]) PublishContext(ctx context.Context, value T) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}
	if s.equal != nil && s.hasLatest && s.equal(s.latest, value) {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.latest = value
	s.hasLatest = true

	// Copy subscribers to avoid holding lock during execution
	subs := make([]*subscriber[T], len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	s.deliver(ctx, subs, seq, value)
}

func (s *Stream[T]) deliver(ctx context.Context, subs []*subscriber[T], seq uint64, value T) {
	for _, sub := range subs {
		if ctx.Err() != nil || s.closed.Load() {
			return
		}
		if !sub.active.Load() {
			continue
		}

		switch {
		case sub.cfg.async && sub.cfg.sequential:
			s.enqueue(ctx, sub, value)
		case sub.cfg.async:
			s.wg.Add(1)
			go func(capturedCtx context.Context) {
				defer s.wg.Done()
				if capturedCtx.Err() != nil {
					return
				}
				s.invoke(sub, value)
			}(ctx)
		default:
			if sub.claim(seq) {
				s.invoke(sub, value)
			}
		}
	}
}

// enqueue queues value for a sequential async subscriber and starts its
// worker when none is running.
func (s *Stream[T]) enqueue(ctx context.Context, sub *subscriber[T], value T) {
	sub.mu.Lock()
	sub.pending = append(sub.pending, pendingValue[T]{ctx: ctx, value: value})
	if sub.running {
		sub.mu.Unlock()
		return
	}
	sub.running = true
	s.wg.Add(1)
	sub.mu.Unlock()

	go s.drainPending(sub)
}

// drainPending runs queued values one at a time until the queue is empty
func (s *Stream[T]) drainPending(sub *subscriber[T]) {
	defer s.wg.Done()
	for {
		sub.mu.Lock()
		if len(sub.pending) == 0 {
			sub.running = false
			sub.pending = nil
			sub.mu.Unlock()
			return
		}
		next := sub.pending[0]
		sub.pending[0] = pendingValue[T]{}
		sub.pending = sub.pending[1:]
		sub.mu.Unlock()

		if next.ctx.Err() != nil {
			continue
		}
		s.invoke(sub, next.value)
	}
}

// invoke calls a single handler, recovering panics
func (s *Stream[T]) invoke(sub *subscriber[T], value T) {
	if s.closed.Load() || !sub.active.Load() {
		return
	}
	if sub.cfg.once {
		if !sub.executed.CompareAndSwap(false, true) {
			return
		}
		s.unsubscribe(sub)
	}
	if s.clone != nil {
		value = s.clone(value)
	}

	defer func() {
		if r := recover(); r != nil {
			if s.panicHandler != nil {
				s.panicHandler(value, r)
				return
			}
			s.logger.Error("stream handler panicked", slog.Any("panic", r))
		}
	}()

	sub.handler(value)
}

// Latest returns the most recently published value
func (s *Stream[T]) Latest() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// HasSubscribers returns true if there are any active subscribers
func (s *Stream[T]) HasSubscribers() bool {
	return s.SubscriberCount() > 0
}

// SubscriberCount returns the number of active subscribers
func (s *Stream[T]) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Wait waits for all async handlers to complete
func (s *Stream[T]) Wait() {
	s.wg.Wait()
}

// Close stops delivery to existing and future subscribers.
// Handlers already running are not interrupted.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return
	}
	for _, sub := range s.subscribers {
		sub.active.Store(false)
	}
	s.subscribers = nil
}

// IsClosed reports whether Close has been called
func (s *Stream[T]) IsClosed() bool {
	return s.closed.Load()
}

var _ Observable[State] = (*Stream[State])(nil)
