// Package store provides an observable state container. State values are
// treated as immutable snapshots: every transition builds a new value and
// replaces the old one in a single step, then notifies subscribers.
package store

import (
	"sync"

	"github.com/fruitsalade/swalang/internal/metrics"
)

// Listener receives the committed state after each transition.
type Listener[S any] func(S)

type subscription[S any] struct {
	id uint64
	fn Listener[S]
}

// Store holds one state value of type S.
type Store[S any] struct {
	name    string
	initial func() S

	mu    sync.Mutex
	state S

	// notifyMu keeps fan-out ordered: listeners observe snapshots in the
	// order they were committed.
	notifyMu sync.Mutex

	subMu  sync.RWMutex
	nextID uint64
	subs   []subscription[S]
}

// New creates a store whose initial and reset state come from initial.
func New[S any](name string, initial func() S) *Store[S] {
	return &Store[S]{
		name:    name,
		initial: initial,
		state:   initial(),
	}
}

// State returns the last committed snapshot.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the current snapshot and commits its result.
// fn must not modify its argument and must not block. The committed
// snapshot is returned.
func (s *Store[S]) Update(fn func(S) S) S {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := fn(s.state)
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return next
}

// UpdateIf is Update where fn may decline the transition by returning false.
// Declined transitions do not notify.
func (s *Store[S]) UpdateIf(fn func(S) (S, bool)) (S, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next, ok := fn(s.state)
	if !ok {
		cur := s.state
		s.mu.Unlock()
		return cur, false
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return next, true
}

// Reset reinitializes the state and notifies subscribers.
func (s *Store[S]) Reset() {
	s.Update(func(S) S { return s.initial() })
}

// Subscribe registers fn and returns a function that removes it.
// Listeners are called synchronously, in subscription order, outside the
// state lock; they may read the store but must not update it.
func (s *Store[S]) Subscribe(fn Listener[S]) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[S]{id: id, fn: fn})
	count := len(s.subs)
	s.subMu.Unlock()
	metrics.SetStoreSubscribers(s.name, count)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Store[S]) unsubscribe(id uint64) {
	s.subMu.Lock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
	count := len(s.subs)
	s.subMu.Unlock()
	metrics.SetStoreSubscribers(s.name, count)
}

// Count returns the current number of subscribers.
func (s *Store[S]) Count() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

func (s *Store[S]) notify(state S) {
	s.subMu.RLock()
	subs := s.subs
	s.subMu.RUnlock()
	for _, sub := range subs {
		sub.fn(state)
	}
}
