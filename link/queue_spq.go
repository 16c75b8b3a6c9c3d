package link

import (
	"bytes"
	"strconv"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/spq"
)

// record kinds stored in persistent queue
const (
	recordDatagram byte = 'd'
	recordSentinel byte = 's'
)

// datagramQueue is inbound buffer between listener and dispatcher.
type datagramQueue interface {
	Push([]byte) error
	Pop() ([]byte, bool)
	Len() int
	Close() error
}

var _ datagramQueue = &Queue[[]byte]{}
var _ datagramQueue = &spqQueue{}

// spqQueue keeps inbound datagrams on disk, so packets received before crash
// are dispatched after restart.
// spq.Peek blocks on empty queue, pending count guards Pop from that.
type spqQueue struct {
	mu       sync.Mutex
	q        *spq.Queue
	pending  int
	capacity int
	policy   OverflowPolicy
	fault    func(error)
}

func openSpqQueue(path string, capacity int, policy OverflowPolicy, fault func(error)) (*spqQueue, error) {
	q, err := spq.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "inbound queue open path=%s", path)
	}
	sq := &spqQueue{
		q:        q,
		capacity: capacity,
		policy:   policy,
		fault:    fault,
	}
	if err = sq.recover(); err != nil {
		_ = q.Close()
		return nil, errors.Annotatef(err, "inbound queue recover path=%s", path)
	}
	return sq, nil
}

// recover counts items left from previous run.
// Sentinel goes to tail, then every item before it rotates behind it,
// item order is preserved and queue ends with the same content.
func (sq *spqQueue) recover() error {
	sentinel := []byte{recordSentinel}
	sentinel = strconv.AppendInt(sentinel, time.Now().UnixNano(), 10)
	if err := sq.q.Push(sentinel); err != nil {
		return err
	}
	for {
		box, err := sq.q.Peek()
		if err != nil {
			return err
		}
		b := box.Bytes()
		if len(b) > 0 && b[0] == recordSentinel {
			if err = sq.q.Delete(box); err != nil {
				return err
			}
			if bytes.Equal(b, sentinel) {
				return nil
			}
			// stale sentinel from interrupted recover
			continue
		}
		if err = sq.q.DeletePush(box); err != nil {
			return err
		}
		sq.pending++
	}
}

func (sq *spqQueue) Push(b []byte) error {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	var result error
	if sq.capacity > 0 && sq.pending >= sq.capacity {
		switch sq.policy {
		case OverflowReject:
			return errors.Annotatef(ErrQueueFull, "capacity=%d", sq.capacity)
		case OverflowDropOldest:
			if _, err := sq.popLocked(); err != nil {
				return errors.Annotate(err, "inbound queue drop oldest")
			}
			result = errors.Annotatef(ErrQueueOverflow, "capacity=%d", sq.capacity)
		}
	}
	record := make([]byte, 1+len(b))
	record[0] = recordDatagram
	copy(record[1:], b)
	if err := sq.q.Push(record); err != nil {
		if err == spq.ErrClosed {
			return ErrQueueClosed
		}
		return errors.Annotate(err, "inbound queue push")
	}
	sq.pending++
	return result
}

func (sq *spqQueue) Pop() ([]byte, bool) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	for sq.pending > 0 {
		b, err := sq.popLocked()
		if err == nil {
			return b, true
		}
		if err == spq.ErrClosed {
			break
		}
		if sq.fault != nil {
			sq.fault(errors.Annotate(err, "inbound queue pop"))
		}
		if !errors.IsNotValid(err) {
			break
		}
	}
	return nil, false
}

func (sq *spqQueue) popLocked() ([]byte, error) {
	if sq.pending == 0 {
		return nil, nil
	}
	box, err := sq.q.Peek()
	if err != nil {
		return nil, err
	}
	if err = sq.q.Delete(box); err != nil {
		return nil, err
	}
	sq.pending--
	b := box.Bytes()
	if len(b) == 0 || b[0] != recordDatagram {
		return nil, errors.NotValidf("inbound queue record=%x", b)
	}
	return b[1:], nil
}

func (sq *spqQueue) Len() int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.pending
}

func (sq *spqQueue) Close() error {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.q.Close()
}
