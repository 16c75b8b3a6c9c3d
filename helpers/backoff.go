package helpers

import (
	"sync/atomic"
	"time"

	"github.com/temoto/uaslink/helpers/atomic_clock"
)

// Limited exponential backoff for retry delays.
// Delay is zero until first Failure(), then starts at Min and grows by K up to Max.
// Success() resets delay to zero.
type Backoff struct {
	next int64 // atomic align
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms
}

// Use scenario:
// for {
//   time.Sleep(backoff.DelayBefore())
//   err := op()
//   backoff.Update(err==nil)
// }
// Returns remaining part of delay, time since last Failure() is subtracted.
func (b *Backoff) DelayBefore() time.Duration {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		return 0
	}
	since := atomic_clock.Since(&b.last)
	if since >= next {
		return 0
	}
	return b.round(next - since)
}

// Current full delay, without subtracting time since last failure.
func (b *Backoff) Delay() time.Duration {
	return time.Duration(atomic.LoadInt64(&b.next))
}

// Increase next delay.
func (b *Backoff) Failure() {
	next := time.Duration(atomic.LoadInt64(&b.next))
	next = time.Duration(float32(next) * b.K)
	next = b.limit(next)
	b.last.SetNow()
	atomic.StoreInt64(&b.next, int64(next))
}

func (b *Backoff) Success() {
	atomic.StoreInt64(&b.next, 0)
}

func (b *Backoff) Update(success bool) {
	if success {
		b.Success()
	} else {
		b.Failure()
	}
}

// Sleep waits DelayBefore() or until stop is closed. Returns false on stop.
func (b *Backoff) Sleep(stop <-chan struct{}) bool {
	d := b.DelayBefore()
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return true
	case <-stop:
		return false
	}
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max != 0 && d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
