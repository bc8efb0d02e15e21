// Package rtos models the scheduler primitives the runtime consumes from the
// underlying RTOS: tick based timeouts, a tick clock and a semaphore whose
// release side may be called from interrupt context.
package rtos

import (
	"math"
	"time"
)

// Ticks is a timeout expressed in scheduler ticks.
type Ticks int64

const (
	// NoWait turns a blocking wait into a non-blocking attempt.
	NoWait Ticks = 0
	// Forever waits without a timeout.
	Forever Ticks = math.MaxInt64
)

// Clock converts between ticks and wall time.
type Clock struct {
	// Tick is the duration of one scheduler tick.
	Tick time.Duration
}

// DefaultClock runs at 1000 Hz, the common SysTick rate.
var DefaultClock = Clock{Tick: time.Millisecond}

// Duration converts t to wall time. Forever maps to a negative duration.
func (c Clock) Duration(t Ticks) time.Duration {
	if t == Forever {
		return -1
	}
	tick := c.Tick
	if tick <= 0 {
		tick = DefaultClock.Tick
	}
	return time.Duration(t) * tick
}

// Ticks converts d to ticks, rounding up so a non-zero duration never
// becomes a non-blocking attempt.
func (c Clock) Ticks(d time.Duration) Ticks {
	if d <= 0 {
		return NoWait
	}
	tick := c.Tick
	if tick <= 0 {
		tick = DefaultClock.Tick
	}
	return Ticks((d + tick - 1) / tick)
}
