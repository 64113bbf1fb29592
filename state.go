package validity

import "strings"

// Text is the ordered set of messages attached to a validation state.
// Order is display order and duplicates are allowed.
type Text []string

// Len returns the number of messages
func (t Text) Len() int {
	return len(t)
}

// Empty reports whether there are no messages
func (t Text) Empty() bool {
	return len(t) == 0
}

// SingleLine joins all messages with the given separator
func (t Text) SingleLine(separator string) string {
	return strings.Join(t, separator)
}

// String joins all messages with a single space
func (t Text) String() string {
	return t.SingleLine(" ")
}

// Clone returns a copy that shares no memory with t.
// A nil Text clones to an empty, non-nil Text.
func (t Text) Clone() Text {
	out := make(Text, len(t))
	copy(out, t)
	return out
}

// Equal reports whether both texts hold the same messages in the same order.
// A nil Text is equal to an empty one.
func (t Text) Equal(other Text) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// State is a single validation verdict emitted by a Source
type State struct {
	IsValid bool
	Text    Text
}

// Valid returns a valid state with no messages
func Valid() State {
	return State{IsValid: true, Text: Text{}}
}

// Invalid returns an invalid state carrying the given messages
func Invalid(messages ...string) State {
	return State{IsValid: false, Text: Text(messages).Clone()}
}

// Clone returns a copy of s whose Text shares no memory with s.Text
func (s State) Clone() State {
	return State{IsValid: s.IsValid, Text: s.Text.Clone()}
}

// Equal reports whether both states carry the same verdict and messages
func (s State) Equal(other State) bool {
	return s.IsValid == other.IsValid && s.Text.Equal(other.Text)
}
