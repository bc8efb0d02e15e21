package rtos

import (
	"time"

	"github.com/mwantia/pio/data"
)

// Semaphore is a counting semaphore bounded by its maximum count. Post never
// blocks and is safe to call from interrupt context; Wait is for threads only.
type Semaphore struct {
	tokens chan struct{}
	clock  Clock
}

// NewSemaphore returns a semaphore with the given maximum and initial count.
// A maximum of 1 yields a binary semaphore where repeated posts coalesce.
func NewSemaphore(max, initial int, clock Clock) *Semaphore {
	if max < 1 {
		max = 1
	}
	s := &Semaphore{
		tokens: make(chan struct{}, max),
		clock:  clock,
	}
	for i := 0; i < initial && i < max; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// NewBinarySemaphore returns an empty binary semaphore.
func NewBinarySemaphore(clock Clock) *Semaphore {
	return NewSemaphore(1, 0, clock)
}

// Post releases one token. A post on a semaphore already at its maximum
// count is dropped and reported with EAGAIN.
func (s *Semaphore) Post() error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	default:
		return data.EAGAIN
	}
}

// Wait takes one token. With NoWait it only tries once and fails with EAGAIN,
// otherwise it fails with ETIMEDOUT once the timeout expires.
func (s *Semaphore) Wait(timeout Ticks) error {
	select {
	case <-s.tokens:
		return nil
	default:
	}

	switch timeout {
	case NoWait:
		return data.EAGAIN
	case Forever:
		<-s.tokens
		return nil
	}

	timer := time.NewTimer(s.clock.Duration(timeout))
	defer timer.Stop()

	select {
	case <-s.tokens:
		return nil
	case <-timer.C:
		return data.ETIMEDOUT
	}
}

// Reset drains every pending token.
func (s *Semaphore) Reset() {
	for {
		select {
		case <-s.tokens:
		default:
			return
		}
	}
}

// Count returns the number of pending tokens.
func (s *Semaphore) Count() int {
	return len(s.tokens)
}
