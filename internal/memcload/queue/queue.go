package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrClosed    = errors.New("queue is closed")
	ErrAbandoned = errors.New("queue has no live consumers")
)

// Queue is a bounded multi-producer multi-consumer FIFO.
//
// Termination contract: a single call to Close is the termination signal for every consumer, however many
// there are. Consumers ranging over Items (or calling Pop) receive every item pushed before Close and then
// observe the end of the queue. Close may be called any number of times, including after every consumer has
// already stopped.
//
// If the consuming pool dies, Abandon releases any producer blocked on a full queue so that it cannot hang.
type Queue[T any] struct {
	name        string
	items       chan T
	mu          sync.RWMutex
	closed      bool
	abandoned   chan struct{}
	abandonOnce sync.Once
}

func New[T any](name string, capacity int) *Queue[T] {
	return &Queue[T]{
		name:      name,
		items:     make(chan T, capacity),
		abandoned: make(chan struct{}),
	}
}

func (q *Queue[T]) Name() string {
	return q.name
}

// Push adds item to the queue, blocking while the queue is full. It fails if the queue has been closed or
// abandoned, or if ctx is done before there is room.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.WithMessagef(ErrClosed, "pushing to %s", q.name)
	}
	select {
	case <-q.abandoned:
		return errors.WithMessagef(ErrAbandoned, "pushing to %s", q.name)
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-q.abandoned:
		return errors.WithMessagef(ErrAbandoned, "pushing to %s", q.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop blocks until an item is available. ok is false once the queue is closed and drained.
func (q *Queue[T]) Pop() (item T, ok bool) {
	item, ok = <-q.items
	return
}

// Items returns the channel consumers may range over. It is closed by Close.
func (q *Queue[T]) Items() <-chan T {
	return q.items
}

// Close signals that no more items will be pushed. It waits for in-progress pushes to finish, so callers
// must make sure blocked producers can make progress (live consumers or Abandon).
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

// Abandon marks the queue as having no consumers left. Pending and future pushes fail with ErrAbandoned.
func (q *Queue[T]) Abandon() {
	q.abandonOnce.Do(func() { close(q.abandoned) })
}

func (q *Queue[T]) IsAbandoned() bool {
	select {
	case <-q.abandoned:
		return true
	default:
		return false
	}
}

// Len returns the number of items currently buffered.
func (q *Queue[T]) Len() int {
	return len(q.items)
}
