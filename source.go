package validity

import "reflect"

// Source produces validation states over time.
//
// Whether a source hands its current state to a new subscriber right away
// is up to the source. A Projection works either way; with a source that
// does not replay, the projection reports its unevaluated defaults until
// the next emission.
type Source = Observable[State]

// SourceFunc adapts a subscribe function to Source
type SourceFunc func(handler Handler[State]) (Disposable, error)

// Subscribe calls f(handler)
func (f SourceFunc) Subscribe(handler Handler[State]) (Disposable, error) {
	return f(handler)
}

// isNil reports whether v is nil or an interface holding a nil pointer,
// func, map, slice or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
