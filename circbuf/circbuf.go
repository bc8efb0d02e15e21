// Package circbuf implements the fixed-size byte ring shared between an
// interrupt-side producer and a thread-side consumer.
//
// Only the cursors and the length are guarded, each update inside its own
// short critical section; the bytes themselves are copied outside of it. This
// is safe for exactly one producer (PushBack, BackContiguous, AdvanceBack,
// RetreatBack) and one consumer (PopFront, FrontContiguous, AdvanceFront).
package circbuf

import (
	"fmt"
	"sync"
)

// Buffer is a fixed-capacity byte ring with watermarks.
type Buffer struct {
	mu sync.Mutex

	buf    []byte
	front  int
	back   int
	length int

	high int
	low  int
}

// New returns a buffer of the given capacity with the high watermark at the
// capacity and the low watermark at zero.
func New(capacity int) *Buffer {
	b, err := NewWithWatermarks(capacity, capacity, 0)
	if err != nil {
		panic(err)
	}
	return b
}

// NewWithWatermarks returns a buffer with explicit watermarks.
// It requires 0 <= low <= high <= capacity and a positive capacity.
func NewWithWatermarks(capacity, high, low int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("circbuf: capacity must be positive, got %d", capacity)
	}
	if low < 0 || low > high || high > capacity {
		return nil, fmt.Errorf("circbuf: invalid watermarks low=%d high=%d capacity=%d", low, high, capacity)
	}

	return &Buffer{
		buf:  make([]byte, capacity),
		high: high,
		low:  low,
	}, nil
}

// Reset empties the buffer. Must not race with either role.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.front = 0
	b.back = 0
	b.length = 0
}

func (b *Buffer) Capacity() int {
	return len(b.buf)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

func (b *Buffer) IsFull() bool {
	return b.Len() == len(b.buf)
}

// IsBelowHighWaterMark reports whether the length is under the high mark.
func (b *Buffer) IsBelowHighWaterMark() bool {
	return b.Len() < b.high
}

// IsBelowLowWaterMark reports whether the length dropped to the low mark or
// under it.
func (b *Buffer) IsBelowLowWaterMark() bool {
	return b.Len() <= b.low
}

func (b *Buffer) HighWaterMark() int {
	return b.high
}

func (b *Buffer) LowWaterMark() int {
	return b.low
}

// PushBack copies as much of p as fits and returns the count. Bytes beyond
// the free space are dropped.
func (b *Buffer) PushBack(p []byte) int {
	b.mu.Lock()
	back, free := b.back, len(b.buf)-b.length
	b.mu.Unlock()

	n := min(len(p), free)
	if n == 0 {
		return 0
	}

	first := min(n, len(b.buf)-back)
	copy(b.buf[back:back+first], p[:first])
	copy(b.buf, p[first:n])

	b.mu.Lock()
	b.back = (back + n) % len(b.buf)
	b.length += n
	b.mu.Unlock()

	return n
}

// PushByte appends a single byte, reporting false when the buffer is full.
func (b *Buffer) PushByte(c byte) bool {
	return b.PushBack([]byte{c}) == 1
}

// PopFront moves up to len(p) bytes out of the buffer and returns the count.
func (b *Buffer) PopFront(p []byte) int {
	b.mu.Lock()
	front, used := b.front, b.length
	b.mu.Unlock()

	n := min(len(p), used)
	if n == 0 {
		return 0
	}

	first := min(n, len(b.buf)-front)
	copy(p[:first], b.buf[front:front+first])
	copy(p[first:n], b.buf)

	b.mu.Lock()
	b.front = (front + n) % len(b.buf)
	b.length -= n
	b.mu.Unlock()

	return n
}

// BackContiguous returns the longest free run starting at the back cursor.
// Data written into it becomes visible after AdvanceBack. The slice is empty
// when the buffer is full.
func (b *Buffer) BackContiguous() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == len(b.buf) {
		return b.buf[b.back:b.back]
	}

	run := len(b.buf) - b.back
	if b.back < b.front {
		run = b.front - b.back
	}
	return b.buf[b.back : b.back+run]
}

// FrontContiguous returns the longest used run starting at the front cursor.
// It is released with AdvanceFront. The slice is empty when nothing is
// buffered.
func (b *Buffer) FrontContiguous() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == 0 {
		return b.buf[b.front:b.front]
	}

	run := len(b.buf) - b.front
	if b.front < b.back {
		run = b.back - b.front
	}
	return b.buf[b.front : b.front+run]
}

// AdvanceBack commits n bytes written through BackContiguous, clamped to the
// free space. It returns the committed count.
func (b *Buffer) AdvanceBack(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = max(0, min(n, len(b.buf)-b.length))
	b.back = (b.back + n) % len(b.buf)
	b.length += n
	return n
}

// AdvanceFront releases n bytes read through FrontContiguous, clamped to the
// buffered length. It returns the released count.
func (b *Buffer) AdvanceFront(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = max(0, min(n, b.length))
	b.front = (b.front + n) % len(b.buf)
	b.length -= n
	return n
}

// RetreatBack drops the newest byte. A receiver that must never stop uses it
// to reopen a one byte window on a full buffer, losing that byte.
func (b *Buffer) RetreatBack() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == 0 {
		return false
	}
	b.back = (b.back - 1 + len(b.buf)) % len(b.buf)
	b.length--
	return true
}
