// Package handle implements the caller-visible identity of an open stream.
//
// A Handle carries the kind tag, the descriptor assigned to it and the
// implementation object it dispatches to. Every public method validates the
// generic preconditions before the implementation hook runs, so hooks can
// assume an open handle and a usable buffer.
package handle

import (
	"io"

	"github.com/mwantia/pio/data"
)

// NoDescriptor marks a handle without an assigned descriptor.
const NoDescriptor = -1

// DescriptorFreer is the part of the descriptor table Close depends on.
type DescriptorFreer interface {
	Free(fd int) error
}

// Handle is one open object together with its dispatch hooks.
type Handle struct {
	kind  Kind
	fd    int
	flags data.AccessMode
	impl  Ops

	release func(*Handle) bool
}

// New binds impl to a fresh, unopened handle.
func New(kind Kind, impl Ops) *Handle {
	return &Handle{
		kind: kind,
		fd:   NoDescriptor,
		impl: impl,
	}
}

func (h *Handle) Kind() Kind {
	return h.kind
}

// Impl returns the implementation object.
func (h *Handle) Impl() Ops {
	return h.impl
}

func (h *Handle) Descriptor() int {
	return h.fd
}

// IsOpen reports whether a descriptor is currently assigned.
func (h *Handle) IsOpen() bool {
	return h.fd != NoDescriptor
}

func (h *Handle) Flags() data.AccessMode {
	return h.flags
}

// SetFlags records the access mode the handle was opened with.
func (h *Handle) SetFlags(flags data.AccessMode) {
	h.flags = flags
}

// SetDescriptor is called by the descriptor table on allocation.
func (h *Handle) SetDescriptor(fd int) {
	h.fd = fd
}

// ClearDescriptor is called by the descriptor table on free.
func (h *Handle) ClearDescriptor() {
	h.fd = NoDescriptor
}

// SetReleaser installs the callback returning the handle to its pool.
// Handles that are not pooled, such as registered devices, have none.
func (h *Handle) SetReleaser(release func(*Handle) bool) {
	h.release = release
}

func (h *Handle) releaseToPool() {
	h.flags = 0
	if h.release != nil {
		h.release(h)
	}
}

func (h *Handle) canRead() bool {
	return h.flags&data.AccessModeReadWrite == 0 || h.flags.CanRead()
}

func (h *Handle) canWrite() bool {
	return h.flags&data.AccessModeReadWrite == 0 || h.flags.CanWrite()
}

func (h *Handle) Read(p []byte) (int, error) {
	if !h.IsOpen() {
		return 0, data.EBADF
	}
	if p == nil {
		return 0, data.EFAULT
	}
	if !h.canRead() {
		return 0, data.EBADF
	}
	if !h.impl.Connected() {
		return 0, data.EIO
	}
	if len(p) == 0 {
		return 0, nil
	}

	return h.impl.Read(p)
}

func (h *Handle) Write(p []byte) (int, error) {
	if !h.IsOpen() {
		return 0, data.EBADF
	}
	if p == nil {
		return 0, data.EFAULT
	}
	if !h.canWrite() {
		return 0, data.EBADF
	}
	if !h.impl.Connected() {
		return 0, data.EIO
	}
	if len(p) == 0 {
		return 0, nil
	}

	return h.impl.Write(p)
}

// Writev writes the vectors in order. Without a native gathered write it
// stops at the first short or failed write and returns the total so far.
func (h *Handle) Writev(iov [][]byte) (int, error) {
	if !h.IsOpen() {
		return 0, data.EBADF
	}
	if iov == nil {
		return 0, data.EFAULT
	}
	if len(iov) == 0 {
		return 0, data.EINVAL
	}
	if !h.canWrite() {
		return 0, data.EBADF
	}
	if !h.impl.Connected() {
		return 0, data.EIO
	}

	if vw, ok := h.impl.(VectorWriter); ok {
		return vw.Writev(iov)
	}

	total := 0
	for _, p := range iov {
		if len(p) == 0 {
			continue
		}
		n, err := h.impl.Write(p)
		total += n
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if n < len(p) {
			break
		}
	}
	return total, nil
}

func (h *Handle) Ioctl(req data.IoctlRequest) error {
	if !h.IsOpen() {
		return data.EBADF
	}
	if req == nil {
		return data.EINVAL
	}
	return h.impl.Ioctl(req)
}

func (h *Handle) Fcntl(cmd data.FcntlCommand, arg int) (int, error) {
	if !h.IsOpen() {
		return 0, data.EBADF
	}
	return h.impl.Fcntl(cmd, arg)
}

// Isatty fails with ENOTTY for anything that is not a terminal.
func (h *Handle) Isatty() (bool, error) {
	if !h.IsOpen() {
		return false, data.EBADF
	}
	if !h.impl.Isatty() {
		return false, data.ENOTTY
	}
	return true, nil
}

func (h *Handle) Fstat(st *data.Stat) error {
	if !h.IsOpen() {
		return data.EBADF
	}
	if st == nil {
		return data.EFAULT
	}
	st.Reset()
	return h.impl.Fstat(st)
}

// Lseek fails with ESPIPE on objects without file hooks, such as a serial
// line.
func (h *Handle) Lseek(offset int64, whence int) (int64, error) {
	if !h.IsOpen() {
		return 0, data.EBADF
	}
	file, ok := h.impl.(FileOps)
	if !ok {
		return 0, data.ESPIPE
	}
	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return 0, data.EINVAL
	}
	return file.Lseek(offset, whence)
}

func (h *Handle) Ftruncate(size int64) error {
	if !h.IsOpen() {
		return data.EBADF
	}
	file, ok := h.impl.(FileOps)
	if !ok {
		return data.EINVAL
	}
	if size < 0 {
		return data.EINVAL
	}
	if !h.canWrite() {
		return data.EBADF
	}
	return file.Ftruncate(size)
}

func (h *Handle) Fsync() error {
	if !h.IsOpen() {
		return data.EBADF
	}
	file, ok := h.impl.(FileOps)
	if !ok {
		return data.EINVAL
	}
	return file.Fsync()
}

// Close runs the close hook, frees the descriptor and only then returns the
// object to its pool. If freeing the descriptor fails the object stays out of
// the pool, since the descriptor table could still reach it.
func (h *Handle) Close(fds DescriptorFreer) error {
	if !h.IsOpen() {
		return data.EBADF
	}

	fd := h.fd
	err := h.impl.Close()
	if ferr := fds.Free(fd); ferr != nil {
		return ferr
	}

	h.releaseToPool()
	return err
}

// Abort undoes a successful open hook for a handle that never received a
// descriptor, for example because the descriptor table was full.
func (h *Handle) Abort() error {
	if h.IsOpen() {
		return data.EBUSY
	}

	err := h.impl.Close()
	h.releaseToPool()
	return err
}
