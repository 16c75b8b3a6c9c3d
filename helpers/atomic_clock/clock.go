// Package atomic_clock stores a wall clock point in one int64 for lock-free access.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

// Clock zero value means "never".
type Clock struct{ v int64 }

func (c *Clock) get() int64 { return atomic.LoadInt64(&c.v) }

func (c *Clock) IsZero() bool         { return c.get() == 0 }
func (c *Clock) SetNow()              { atomic.StoreInt64(&c.v, time.Now().UnixNano()) }
func (c *Clock) SetTime(t time.Time)  { atomic.StoreInt64(&c.v, t.UnixNano()) }
func (c *Clock) Time() time.Time      { return time.Unix(0, c.get()) }
func (c *Clock) UnixNano() int64      { return c.get() }

// Since returns 0 for zero clock.
func Since(begin *Clock) time.Duration {
	b := begin.get()
	if b == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - b)
}
