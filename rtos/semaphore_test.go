package rtos

import (
	"errors"
	"testing"
	"time"

	"github.com/mwantia/pio/data"
)

func TestSemaphore_ProbeAndTimeout(t *testing.T) {
	s := NewBinarySemaphore(DefaultClock)

	if err := s.Wait(NoWait); !errors.Is(err, data.EAGAIN) {
		t.Fatalf("Expected EAGAIN on an empty semaphore, got %v", err)
	}

	start := time.Now()
	if err := s.Wait(5); !errors.Is(err, data.ETIMEDOUT) {
		t.Fatalf("Expected ETIMEDOUT, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Wait returned after %v, expected at least 5ms", elapsed)
	}
}

func TestSemaphore_BinaryPostsCoalesce(t *testing.T) {
	s := NewBinarySemaphore(DefaultClock)

	if err := s.Post(); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if err := s.Post(); !errors.Is(err, data.EAGAIN) {
		t.Fatalf("Expected EAGAIN on saturated post, got %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("Expected count 1, got %d", s.Count())
	}
	if err := s.Wait(NoWait); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := s.Wait(NoWait); !errors.Is(err, data.EAGAIN) {
		t.Fatalf("Expected EAGAIN after draining, got %v", err)
	}
}

func TestSemaphore_WakesBlockedWaiter(t *testing.T) {
	s := NewBinarySemaphore(DefaultClock)
	done := make(chan error, 1)

	go func() {
		done <- s.Wait(Forever)
	}()

	time.Sleep(2 * time.Millisecond)
	if err := s.Post(); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter was not released")
	}
}

func TestClock_Conversion(t *testing.T) {
	c := Clock{Tick: 10 * time.Millisecond}

	if got := c.Ticks(15 * time.Millisecond); got != 2 {
		t.Errorf("Ticks(15ms) = %d, want 2", got)
	}
	if got := c.Duration(3); got != 30*time.Millisecond {
		t.Errorf("Duration(3) = %v, want 30ms", got)
	}
	if got := c.Ticks(0); got != NoWait {
		t.Errorf("Ticks(0) = %d, want NoWait", got)
	}
}
