package validity

import "sync"

// Disposable releases a resource such as a subscription
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a plain function to Disposable
type DisposeFunc func()

// Dispose calls f. A nil DisposeFunc does nothing.
func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

type nopDisposable struct{}

func (nopDisposable) Dispose() {}

// NopDisposable returns a Disposable that does nothing
func NopDisposable() Disposable {
	return nopDisposable{}
}

// Disposables is an ordered registry of release actions that are run
// exactly once, in the order they were added.
//
// Items added after Dispose has run are disposed immediately.
type Disposables struct {
	items    []Disposable
	onPanic  func(recovered any)
	disposed bool
	mu       sync.Mutex
}

// NewDisposables creates a registry holding the given items
func NewDisposables(items ...Disposable) *Disposables {
	d := &Disposables{}
	for _, item := range items {
		d.Add(item)
	}
	return d
}

// OnPanic sets a function that receives values recovered from
// release actions that panic. Remaining actions still run.
func (d *Disposables) OnPanic(fn func(recovered any)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPanic = fn
}

// Add registers a release action. Nil items are ignored.
func (d *Disposables) Add(item Disposable) {
	if isNil(item) {
		return
	}

	d.mu.Lock()
	if d.disposed {
		onPanic := d.onPanic
		d.mu.Unlock()
		disposeSafely(item, onPanic)
		return
	}
	d.items = append(d.items, item)
	d.mu.Unlock()
}

// AddFunc registers a function as a release action
func (d *Disposables) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	d.Add(DisposeFunc(fn))
}

// Len returns the number of pending release actions
func (d *Disposables) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// IsDisposed reports whether Dispose has been called
func (d *Disposables) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// Dispose runs every registered release action in order.
// Calling it again has no effect.
func (d *Disposables) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	items := d.items
	d.items = nil
	onPanic := d.onPanic
	d.mu.Unlock()

	for _, item := range items {
		disposeSafely(item, onPanic)
	}
}

func disposeSafely(item Disposable, onPanic func(recovered any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	item.Dispose()
}
