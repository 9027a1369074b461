package messages

import (
	"sync/atomic"
	"time"
)

// Clock returns the current time in Unix milliseconds.
type Clock interface {
	NowMilli() int64
}

// MonotonicClock reads the wall clock and never goes backwards within a
// process: a reading below the previous one is raised to it.
type MonotonicClock struct {
	now  func() time.Time
	last atomic.Int64
}

// NewMonotonicClock creates a clock over time.Now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

// NowMilli implements Clock.
func (c *MonotonicClock) NowMilli() int64 {
	for {
		prev := c.last.Load()
		now := c.now().UnixMilli()
		if now < prev {
			now = prev
		}
		if c.last.CompareAndSwap(prev, now) {
			return now
		}
	}
}
