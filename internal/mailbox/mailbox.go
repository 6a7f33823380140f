// Package mailbox implements an unbounded multi-producer, single-consumer queue.
//
// Producers hold cloneable Sender handles and never block on Send. The single
// Receiver drains items in arrival order. The queue stops accepting items when
// the Receiver closes it or when the last Sender handle is dropped; items
// already buffered stay receivable in both cases.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send once the queue no longer accepts items.
var ErrClosed = errors.New("mailbox: closed")

type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	closed  bool
	senders int
	notify  chan struct{}
}

// New creates a queue and returns its first transmit handle and its receiver.
func New[T any]() (*Sender[T], *Receiver[T]) {
	q := &queue[T]{
		senders: 1,
		notify:  make(chan struct{}, 1),
	}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// wake signals the receiver without blocking; one pending signal is enough.
func (q *queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// done reports whether no further items can arrive. Caller holds mu.
func (q *queue[T]) done() bool {
	return q.closed || q.senders == 0
}

// Sender is a transmit handle. Handles are cheap to clone and safe for
// concurrent use.
type Sender[T any] struct {
	q       *queue[T]
	mu      sync.Mutex
	dropped bool
}

// Send enqueues v. It never blocks.
func (s *Sender[T]) Send(v T) error {
	s.mu.Lock()
	dropped := s.dropped
	s.mu.Unlock()
	if dropped {
		return ErrClosed
	}

	q := s.q
	q.mu.Lock()
	if q.done() {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Clone returns a new handle to the same queue. Once every handle has been
// dropped the queue cannot be reopened: the clone is born dropped.
func (s *Sender[T]) Clone() *Sender[T] {
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.senders == 0 {
		return &Sender[T]{q: q, dropped: true}
	}
	q.senders++
	return &Sender[T]{q: q}
}

// Drop releases the handle. Dropping the last handle ends the stream for the
// receiver once the buffer is drained. Calling Drop twice is a no-op.
func (s *Sender[T]) Drop() {
	s.mu.Lock()
	if s.dropped {
		s.mu.Unlock()
		return
	}
	s.dropped = true
	s.mu.Unlock()

	q := s.q
	q.mu.Lock()
	q.senders--
	last := q.senders == 0
	q.mu.Unlock()

	if last {
		q.wake()
	}
}

// Closed reports whether sends on this handle would be rejected.
func (s *Sender[T]) Closed() bool {
	s.mu.Lock()
	dropped := s.dropped
	s.mu.Unlock()
	if dropped {
		return true
	}
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.q.closed
}

// Receiver is the single consumer end of the queue.
type Receiver[T any] struct {
	q *queue[T]
}

// Recv returns the next item in arrival order. It blocks until an item is
// available, and returns false once the queue is finished and empty or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, bool) {
	for {
		v, ok, finished := r.pop()
		if ok {
			return v, true
		}
		if finished {
			return v, false
		}

		select {
		case <-r.q.notify:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// TryRecv returns the next item without blocking.
func (r *Receiver[T]) TryRecv() (T, bool) {
	v, ok, _ := r.pop()
	return v, ok
}

func (r *Receiver[T]) pop() (v T, ok, finished bool) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head < len(q.items) {
		var zero T
		v = q.items[q.head]
		q.items[q.head] = zero
		q.head++
		if q.head == len(q.items) {
			q.items = q.items[:0]
			q.head = 0
		}
		return v, true, false
	}
	return v, false, q.done()
}

// Close stops the queue from accepting new items. Buffered items remain
// receivable. Close is idempotent.
func (r *Receiver[T]) Close() {
	q := r.q
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Len returns the number of buffered items.
func (r *Receiver[T]) Len() int {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
