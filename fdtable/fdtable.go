// Package fdtable maps small integer descriptors to open handles.
//
// Descriptors 0, 1 and 2 are reserved for the standard streams and never
// handed out by Alloc. The table is not synchronized.
package fdtable

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/log"
)

// Reserved is the number of low descriptors kept for stdin, stdout, stderr.
const Reserved = 3

// Table maps descriptors to open handles.
type Table struct {
	log   *log.Logger
	slots []*handle.Handle
}

// New returns a table with size slots, the reserved ones included.
func New(size int, logger *log.Logger) *Table {
	if size < Reserved {
		size = Reserved
	}
	if logger == nil {
		logger = log.Discard()
	}

	return &Table{
		log:   logger,
		slots: make([]*handle.Handle, size),
	}
}

// Alloc installs h in the lowest free slot at or above Reserved and stores
// the descriptor on the handle.
func (t *Table) Alloc(h *handle.Handle) (int, error) {
	if h == nil {
		return handle.NoDescriptor, data.EINVAL
	}
	if h.IsOpen() {
		t.log.Error("Alloc: handle already holds descriptor %d", h.Descriptor())
		return handle.NoDescriptor, data.EBUSY
	}

	for fd := Reserved; fd < len(t.slots); fd++ {
		if t.slots[fd] == nil {
			t.slots[fd] = h
			h.SetDescriptor(fd)
			t.log.Debug("Alloc: descriptor %d assigned to %s handle", fd, h.Kind())
			return fd, nil
		}
	}

	t.log.Warn("Alloc: all %d descriptors in use", len(t.slots)-Reserved)
	return handle.NoDescriptor, data.ENFILE
}

// Assign installs h at a fixed descriptor, including the reserved ones. It is
// used to bind the standard streams at startup.
func (t *Table) Assign(fd int, h *handle.Handle) error {
	if fd < 0 || fd >= len(t.slots) {
		return data.EBADF
	}
	if h == nil {
		return data.EINVAL
	}
	if t.slots[fd] != nil || h.IsOpen() {
		return data.EBUSY
	}

	t.slots[fd] = h
	h.SetDescriptor(fd)
	return nil
}

// Lookup returns the handle installed at fd, or nil for an out of range or
// empty descriptor.
func (t *Table) Lookup(fd int) *handle.Handle {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	return t.slots[fd]
}

// Free empties the slot and clears the descriptor stored on its handle.
func (t *Table) Free(fd int) error {
	if fd < 0 || fd >= len(t.slots) {
		return data.EBADF
	}

	if h := t.slots[fd]; h != nil {
		h.ClearDescriptor()
	}
	t.slots[fd] = nil

	t.log.Debug("Free: descriptor %d released", fd)
	return nil
}

// Size returns the number of slots including the reserved ones.
func (t *Table) Size() int {
	return len(t.slots)
}

// InUse counts the occupied slots.
func (t *Table) InUse() int {
	n := 0
	for _, h := range t.slots {
		if h != nil {
			n++
		}
	}
	return n
}

// Each calls fn for every occupied slot in ascending order until fn returns
// false.
func (t *Table) Each(fn func(fd int, h *handle.Handle) bool) {
	for fd, h := range t.slots {
		if h != nil && !fn(fd, h) {
			return
		}
	}
}
