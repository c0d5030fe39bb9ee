// Package serial runs functions one at a time per key, in submission order.
package serial

import (
	"fmt"
	"sync"

	"github.com/fruitsalade/swalang/internal/logging"
)

type lane struct {
	pending []func()
}

// Queue serializes work per key. Different keys run concurrently. A key's
// worker goroutine exits when its lane drains.
type Queue struct {
	mu     sync.Mutex
	idle   *sync.Cond
	lanes  map[string]*lane
	active int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{lanes: make(map[string]*lane)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Submit schedules fn after all work previously submitted for key.
func (q *Queue) Submit(key string, fn func()) {
	q.mu.Lock()
	q.active++
	l, running := q.lanes[key]
	if !running {
		l = &lane{}
		q.lanes[key] = l
	}
	l.pending = append(l.pending, fn)
	q.mu.Unlock()

	if !running {
		go q.drain(key, l)
	}
}

// Do runs fn after all work previously submitted for key and waits for it.
func (q *Queue) Do(key string, fn func()) {
	done := make(chan struct{})
	q.Submit(key, func() {
		defer close(done)
		fn()
	})
	<-done
}

// Wait blocks until no submitted function is pending or running. It may be
// called while other goroutines keep submitting.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.active > 0 {
		q.idle.Wait()
	}
}

// Pending returns the number of functions for key that have not started.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[key]; ok {
		return len(l.pending)
	}
	return 0
}

func (q *Queue) drain(key string, l *lane) {
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending = l.pending[1:]
		q.mu.Unlock()

		q.run(fn)
	}
}

// run keeps a panicking function from stopping the rest of its lane.
func (q *Queue) run(fn func()) {
	defer q.finish()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("queued work panicked", logging.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (q *Queue) finish() {
	q.mu.Lock()
	q.active--
	if q.active == 0 {
		q.idle.Broadcast()
	}
	q.mu.Unlock()
}
