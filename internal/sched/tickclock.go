// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// Clock returns a monotonically increasing tick count in milliseconds.
type Clock interface {
	Ticks() uint64
}

// SystemClock counts milliseconds since it was created, using the
// monotonic reading of the wall clock.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock creates a clock whose tick zero is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Ticks returns the milliseconds elapsed since the clock was created.
func (c *SystemClock) Ticks() uint64 {
	return uint64(time.Since(c.origin) / time.Millisecond)
}

// ManualClock only moves when told to. Tests and simulations drive it.
type ManualClock struct {
	count atomic.Uint64
}

// NewManualClock creates a clock that starts at the given tick.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.count.Store(start)
	return c
}

// Ticks returns the current tick count atomically.
func (c *ManualClock) Ticks() uint64 { return c.count.Load() }

// Advance moves the clock forward by d ticks and returns the new count.
func (c *ManualClock) Advance(d uint64) uint64 { return c.count.Add(d) }

// Set jumps to tick t. Moving backwards panics, the clock never decreases.
func (c *ManualClock) Set(t uint64) {
	if t < c.count.Load() {
		panic("sched: manual clock moved backwards")
	}
	c.count.Store(t)
}
