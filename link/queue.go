package link

import (
	"fmt"
	"sync"

	"github.com/juju/errors"
)

var (
	ErrQueueFull     = fmt.Errorf("queue is full")
	ErrQueueOverflow = fmt.Errorf("queue overflow, oldest item dropped")
	ErrQueueClosed   = fmt.Errorf("queue is closed")
)

// OverflowPolicy decides what bounded queue does when full.
type OverflowPolicy uint8

const (
	OverflowUnbounded OverflowPolicy = iota
	OverflowReject
	OverflowDropOldest
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "unbounded":
		return OverflowUnbounded, nil
	case "reject":
		return OverflowReject, nil
	case "drop-oldest":
		return OverflowDropOldest, nil
	}
	return OverflowUnbounded, errors.NotValidf("queue_overflow=%q valid: unbounded, reject, drop-oldest", s)
}

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowUnbounded:
		return "unbounded"
	case OverflowReject:
		return "reject"
	case OverflowDropOldest:
		return "drop-oldest"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", uint8(p))
}

// Queue is FIFO ring buffer, safe for many producers and one consumer.
// With OverflowUnbounded the buffer grows and capacity is only initial size.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	len      int
	capacity int
	policy   OverflowPolicy
	closed   bool
}

const queueInitSize = 16

func NewQueue[T any](capacity int, policy OverflowPolicy) *Queue[T] {
	size := capacity
	if size <= 0 {
		size = queueInitSize
	}
	return &Queue[T]{
		buf:      make([]T, size),
		capacity: capacity,
		policy:   policy,
	}
}

// Push appends item to tail.
// Returns ErrQueueFull when item was rejected.
// Returns ErrQueueOverflow when item was stored at the cost of oldest one.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	var result error
	if q.len == len(q.buf) {
		switch {
		case q.policy == OverflowUnbounded || q.capacity <= 0:
			q.grow()
		case q.policy == OverflowReject:
			return errors.Annotatef(ErrQueueFull, "capacity=%d", q.capacity)
		case q.policy == OverflowDropOldest:
			q.popLocked()
			result = errors.Annotatef(ErrQueueOverflow, "capacity=%d", q.capacity)
		}
	}
	q.buf[(q.head+q.len)%len(q.buf)] = item
	q.len++
	return result
}

// Pop removes and returns head item without blocking.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.len == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// Close rejects further Push. Remaining items can still be popped.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.buf[q.head]
	q.buf[q.head] = zero // release reference
	q.head = (q.head + 1) % len(q.buf)
	q.len--
	return item
}

func (q *Queue[T]) grow() {
	nb := make([]T, len(q.buf)*2)
	n := copy(nb, q.buf[q.head:])
	copy(nb[n:], q.buf[:q.head])
	q.buf = nb
	q.head = 0
}
