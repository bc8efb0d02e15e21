package memfs

import (
	"io"
	"time"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/handle"
)

// File is the pooled implementation object of an open memfs file.
type File struct {
	handle.Unimplemented

	driver *Driver
	node   *node
	offset int64
	flags  data.AccessMode
}

var _ fs.File = (*File)(nil)

func (f *File) Open(p string, opts data.OpenOptions) error {
	d := f.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	p, n, err := d.lookup(p)
	switch {
	case err == nil:
		if opts.Flags.HasCreate() && opts.Flags.HasExcl() {
			return data.EEXIST
		}
		if n.mode.IsDir() {
			return data.EISDIR
		}
		if opts.Flags.HasTrunc() && opts.Flags.CanWrite() && len(n.data) > 0 {
			if err := d.truncate(n, 0); err != nil {
				return err
			}
		}
	case err == data.ENOENT && p != "" && opts.Flags.HasCreate():
		if _, err := d.parent(p); err != nil {
			return err
		}
		if !d.reserve(recordSize(p, 0)) {
			return data.ENOSPC
		}
		perm := opts.Mode & data.ModePerm
		if perm == 0 {
			perm = 0644
		}
		n = newNode(perm)
		d.paths.Set(p, n)
		d.dirty = true
	default:
		return err
	}

	f.node = n
	f.offset = 0
	f.flags = opts.Flags
	return nil
}

func (f *File) Close() error {
	f.node = nil
	f.offset = 0
	f.flags = 0
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	d := f.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if f.offset >= int64(len(f.node.data)) {
		return 0, nil
	}
	n := copy(p, f.node.data[f.offset:])
	f.offset += int64(n)
	f.node.atime = time.Now()
	return n, nil
}

func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	d := f.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if f.flags.HasAppend() {
		f.offset = int64(len(f.node.data))
	}

	end := f.offset + int64(len(p))
	if size := int64(len(f.node.data)); end > size && len(p) > 0 {
		room := d.capacity() - d.used + contentSize(int(size))
		if limit := int64(maxContent(room)); end > limit {
			if limit <= f.offset {
				return 0, data.ENOSPC
			}
			end = limit
		}
		d.used += contentSize(int(end)) - contentSize(int(size))
		f.node.data = append(f.node.data, make([]byte, end-size)...)
	}

	n := copy(f.node.data[f.offset:end], p)
	f.offset += int64(n)
	f.node.mtime = time.Now()
	f.node.ctime = f.node.mtime
	d.dirty = true

	if f.flags.HasSync() {
		if err := d.syncLocked(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (f *File) Lseek(offset int64, whence int) (int64, error) {
	d := f.driver
	d.mu.RLock()
	defer d.mu.RUnlock()

	var base int64
	switch whence {
	case io.SeekCurrent:
		base = f.offset
	case io.SeekEnd:
		base = int64(len(f.node.data))
	}
	if base+offset < 0 {
		return 0, data.EINVAL
	}
	f.offset = base + offset
	return f.offset, nil
}

func (f *File) Ftruncate(size int64) error {
	d := f.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.truncate(f.node, size)
}

func (f *File) Fsync() error {
	return f.driver.Sync()
}

func (f *File) Fstat(st *data.Stat) error {
	d := f.driver
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.fill(f.node, st)
	return nil
}

func (f *File) Fcntl(cmd data.FcntlCommand, arg int) (int, error) {
	switch cmd {
	case data.FcntlGetFlags:
		return int(f.flags), nil
	case data.FcntlSetFlags:
		// Only the status flags may change after open.
		const mutable = data.AccessModeAppend | data.AccessModeNonBlock | data.AccessModeSync
		f.flags = f.flags&^mutable | data.AccessMode(arg)&mutable
		return 0, nil
	}
	return 0, data.EINVAL
}
