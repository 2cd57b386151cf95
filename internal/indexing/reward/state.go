// Package reward groups consecutive reward events that belong to the same post.
//
// A group is open while events carry the same (author, permlink) key and closes
// only when an event with a different key arrives, or on an explicit Flush.
package reward

import (
	"slices"
	"time"
)

// Key identifies a post.
type Key struct {
	Author   string
	Permlink string
}

// Group is a set of rewards accumulated for one post.
type Group[R any] struct {
	Key      Key
	OpenedAt time.Time
	Rewards  []R
}

// State is either EMPTY (no open group) or OPEN. The zero value is EMPTY.
// Transitions return a new State and never mutate the receiver.
type State[R any] struct {
	open *Group[R]
}

// IsEmpty reports whether no group is open.
func (s State[R]) IsEmpty() bool {
	return s.open == nil
}

// Open returns a copy of the open group.
func (s State[R]) Open() (Group[R], bool) {
	if s.open == nil {
		return Group[R]{}, false
	}
	g := *s.open
	g.Rewards = slices.Clone(g.Rewards)
	return g, true
}

// Closes reports whether observing key would close the open group, and which group.
func (s State[R]) Closes(key Key) (Key, bool) {
	if s.open == nil || s.open.Key == key {
		return Key{}, false
	}
	return s.open.Key, true
}

// Observe applies one reward event. A different key closes the open group, which is
// returned, and opens a new one at the event's time.
func (s State[R]) Observe(key Key, at time.Time, reward R) (State[R], *Group[R]) {
	var closed *Group[R]
	current := s.open

	if current == nil || current.Key != key {
		if current != nil {
			closed = current
		}
		current = &Group[R]{Key: key, OpenedAt: at}
	}

	next := &Group[R]{
		Key:      current.Key,
		OpenedAt: current.OpenedAt,
		Rewards:  append(slices.Clip(current.Rewards), reward),
	}
	return State[R]{open: next}, closed
}

// Flush closes the open group unconditionally. Used on shutdown.
func (s State[R]) Flush() (State[R], *Group[R]) {
	return State[R]{}, s.open
}
