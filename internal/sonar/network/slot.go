package network

import (
	"context"
	"sync"
	"sync/atomic"
)

// CommandSlot holds at most one outbound command. A new command replaces a
// pending one instead of queueing behind it.
type CommandSlot struct {
	mu      sync.Mutex
	pending []byte

	overwritten atomic.Uint64
}

// Put stores a copy of cmd and reports whether it replaced an unsent one.
func (s *CommandSlot) Put(cmd []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := s.pending != nil
	if replaced {
		s.overwritten.Add(1)
	}
	s.pending = append([]byte(nil), cmd...)
	return replaced
}

// Take removes and returns the pending command, or nil.
func (s *CommandSlot) Take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.pending
	s.pending = nil
	return cmd
}

// Pending reports whether a command is waiting.
func (s *CommandSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Overwritten counts commands replaced before they were sent.
func (s *CommandSlot) Overwritten() uint64 {
	return s.overwritten.Load()
}

// Latest is a depth-one, latest-wins queue. Put never blocks; an unread
// value is dropped when a newer one arrives.
type Latest[T any] struct {
	mu     sync.Mutex
	v      T
	has    bool
	closed bool
	ready  chan struct{}

	dropped atomic.Uint64
}

// NewLatest returns an empty queue.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, dropping any unread value. It reports whether a value was
// dropped. Put after Close is ignored.
func (q *Latest[T]) Put(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	dropped := q.has
	if dropped {
		q.dropped.Add(1)
	}
	q.v, q.has = v, true
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Take returns the unread value without blocking.
func (q *Latest[T]) Take() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeLocked()
}

func (q *Latest[T]) takeLocked() (T, bool) {
	var zero T
	if !q.has {
		return zero, false
	}
	v := q.v
	q.v, q.has = zero, false
	return v, true
}

// Next waits for a value. It returns ErrClosed once the queue is closed and
// drained, or ctx's error.
func (q *Latest[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if v, ok := q.takeLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			// Pass the wake-up on to any other waiter.
			select {
			case q.ready <- struct{}{}:
			default:
			}
			q.mu.Unlock()
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close wakes any waiter. Values already stored can still be taken.
func (q *Latest[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dropped counts values overwritten before anyone read them.
func (q *Latest[T]) Dropped() uint64 {
	return q.dropped.Load()
}
