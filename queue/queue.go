// Package queue provides the per-kind record queue sitting between the
// scanning callbacks and a stream worker.
package queue

import (
	"sync"

	"github.com/emirpasic/gods/v2/queues/linkedlistqueue"
)

// Queue is an unbounded FIFO safe for concurrent producers and consumers.
// Ready is level triggered: it holds a token whenever an item may be waiting.
type Queue[T comparable] struct {
	mutex  sync.Mutex
	items  *linkedlistqueue.Queue[T]
	closed bool

	readych chan struct{}
}

func NewQueue[T comparable]() *Queue[T] {
	return &Queue[T]{
		mutex:  sync.Mutex{},
		items:  linkedlistqueue.New[T](),
		closed: false,

		readych: make(chan struct{}, 1),
	}
}

// Push appends v, returns false if the queue is closed and v was dropped.
func (q *Queue[T]) Push(v T) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return false
	}
	q.items.Enqueue(v)
	q.signal()
	return true
}

// Pop removes the oldest item without blocking.
func (q *Queue[T]) Pop() (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	v, ok := q.items.Dequeue()
	if ok && !q.items.Empty() {
		// keep the token for the remaining items
		q.signal()
	}
	return v, ok
}

func (q *Queue[T]) Ready() <-chan struct{} {
	return q.readych
}

func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.items.Size()
}

// Close stops accepting items. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.signal()
}

// Closed reports whether the queue is closed and fully drained.
func (q *Queue[T]) Closed() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.closed && q.items.Empty()
}

// Discard empties the queue and returns how many items were dropped.
func (q *Queue[T]) Discard() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	n := q.items.Size()
	q.items.Clear()
	return n
}

// caller must hold mutex
func (q *Queue[T]) signal() {
	select {
	case q.readych <- struct{}{}:
	default:
	}
}
