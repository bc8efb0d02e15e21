package pio

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
)

// Open resolves path against the device registry first and the mounted
// filesystems second, and returns the lowest free descriptor.
func (r *Runtime) Open(path string, opts data.OpenOptions) (int, error) {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.openHandle(path, opts)
	if err != nil {
		r.log.Debug("Open: %s failed: %v", path, err)
		return handle.NoDescriptor, r.fail(data.PathErr("open", path, err))
	}

	fd, err := r.fds.Alloc(h)
	if err != nil {
		if aerr := h.Abort(); aerr != nil {
			r.log.Warn("Open: abort of %s failed: %v", path, aerr)
		}
		return handle.NoDescriptor, r.fail(data.PathErr("open", path, err))
	}

	r.log.Debug("Open: %s as descriptor %d", path, fd)
	return fd, nil
}

func (r *Runtime) openHandle(path string, opts data.OpenOptions) (*handle.Handle, error) {
	if path == "" {
		return nil, data.ENOENT
	}

	if e, name, ok := r.devices.Identify(path); ok {
		if e.Handle.IsOpen() {
			return nil, data.EBADF
		}
		if err := e.Device.Open(name, opts); err != nil {
			return nil, err
		}
		e.Handle.SetFlags(opts.Flags)
		return e.Handle, nil
	}

	fsys, rest, ok := r.mounts.Identify(path)
	if !ok {
		return nil, data.ENOENT
	}
	return fsys.Open(rest, opts)
}

func (r *Runtime) lookup(fd int) (*handle.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.fds.Lookup(fd)
	if h == nil {
		return nil, data.EBADF
	}
	return h, nil
}

// Close runs the close hook, frees fd and returns pooled objects to their
// pool.
func (r *Runtime) Close(fd int) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.fds.Lookup(fd)
	if h == nil {
		return r.fail(data.EBADF)
	}

	if err := h.Close(r.fds); err != nil {
		r.log.Warn("Close: descriptor %d: %v", fd, err)
		return r.fail(err)
	}
	r.log.Debug("Close: descriptor %d", fd)
	return nil
}

// Read returns 0 with a nil error at the end of a file.
func (r *Runtime) Read(fd int, p []byte) (int, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	n, err := h.Read(p)
	return n, r.fail(err)
}

func (r *Runtime) Write(fd int, p []byte) (int, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	n, err := h.Write(p)
	return n, r.fail(err)
}

func (r *Runtime) Writev(fd int, iov [][]byte) (int, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	n, err := h.Writev(iov)
	return n, r.fail(err)
}

func (r *Runtime) Ioctl(fd int, req data.IoctlRequest) error {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return r.fail(err)
	}

	return r.fail(h.Ioctl(req))
}

// Fcntl forwards cmd to the implementation. Objects without an fcntl hook
// still answer FcntlGetFlags with the flags they were opened with.
func (r *Runtime) Fcntl(fd int, cmd data.FcntlCommand, arg int) (int, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	v, err := h.Fcntl(cmd, arg)
	if err == data.ENOSYS && cmd == data.FcntlGetFlags {
		return int(h.Flags()), nil
	}
	return v, r.fail(err)
}

func (r *Runtime) Lseek(fd int, offset int64, whence int) (int64, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	pos, err := h.Lseek(offset, whence)
	return pos, r.fail(err)
}

// Isatty fails with ENOTTY for descriptors that are not terminals.
func (r *Runtime) Isatty(fd int) (bool, error) {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return false, r.fail(err)
	}

	ok, err := h.Isatty()
	return ok, r.fail(err)
}

func (r *Runtime) Fstat(fd int, st *data.Stat) error {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return r.fail(err)
	}

	return r.fail(h.Fstat(st))
}

func (r *Runtime) Ftruncate(fd int, size int64) error {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return r.fail(err)
	}

	return r.fail(h.Ftruncate(size))
}

func (r *Runtime) Fsync(fd int) error {
	r.begin()
	h, err := r.lookup(fd)
	if err != nil {
		return r.fail(err)
	}

	return r.fail(h.Fsync())
}
