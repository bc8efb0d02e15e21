package pio

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
)

func (r *Runtime) resolve(path string) (*fs.FileSystem, string, error) {
	if path == "" {
		return nil, "", data.ENOENT
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fsys, rest, ok := r.mounts.Identify(path)
	if !ok {
		return nil, "", data.ENOENT
	}
	return fsys, rest, nil
}

// pathCall resolves path and runs fn on the owning filesystem.
func (r *Runtime) pathCall(op, path string, fn func(fsys *fs.FileSystem, rest string) error) error {
	r.begin()
	fsys, rest, err := r.resolve(path)
	if err == nil {
		err = fn(fsys, rest)
	}
	if err != nil {
		r.log.Debug("%s: %s failed: %v", op, path, err)
	}
	return r.fail(data.PathErr(op, path, err))
}

// Stat describes path. Registered devices are reported through their fstat
// hook.
func (r *Runtime) Stat(path string, st *data.Stat) error {
	r.begin()
	if st == nil {
		return r.fail(data.EFAULT)
	}

	r.mu.RLock()
	e, _, ok := r.devices.Identify(path)
	r.mu.RUnlock()
	if ok {
		st.Reset()
		return r.fail(data.PathErr("stat", path, e.Device.Fstat(st)))
	}

	return r.pathCall("stat", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Stat(rest, st)
	})
}

func (r *Runtime) Chmod(path string, mode data.FileMode) error {
	return r.pathCall("chmod", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Chmod(rest, mode)
	})
}

func (r *Runtime) Truncate(path string, size int64) error {
	return r.pathCall("truncate", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Truncate(rest, size)
	})
}

func (r *Runtime) Unlink(path string) error {
	return r.pathCall("unlink", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Unlink(rest)
	})
}

// Utime sets the timestamps of path; nil sets both to the current time.
func (r *Runtime) Utime(path string, times *data.Utimbuf) error {
	return r.pathCall("utime", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Utime(rest, times)
	})
}

func (r *Runtime) Mkdir(path string, mode data.FileMode) error {
	return r.pathCall("mkdir", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Mkdir(rest, mode)
	})
}

func (r *Runtime) Rmdir(path string) error {
	return r.pathCall("rmdir", path, func(fsys *fs.FileSystem, rest string) error {
		return fsys.Rmdir(rest)
	})
}

// Rename moves from to to within one filesystem. Paths resolving to
// different filesystems fail with EINVAL.
func (r *Runtime) Rename(from, to string) error {
	r.begin()
	if from == "" || to == "" {
		return r.fail(data.PathErr("rename", from, data.ENOENT))
	}

	r.mu.RLock()
	fsys, src, dst, ok := r.mounts.Identify2(from, to)
	target, _, okTo := r.mounts.Identify(to)
	r.mu.RUnlock()

	var err error
	switch {
	case !ok || !okTo:
		err = data.ENOENT
	case fsys != target:
		r.log.Warn("Rename: %s and %s are on different filesystems", from, to)
		err = data.EINVAL
	default:
		err = fsys.Rename(src, dst)
	}
	return r.fail(data.PathErr("rename", from, err))
}

// Opendir opens a directory stream. Directories are not given descriptors.
func (r *Runtime) Opendir(path string) (*fs.Directory, error) {
	r.begin()
	fsys, rest, err := r.resolve(path)
	if err != nil {
		return nil, r.fail(data.PathErr("opendir", path, err))
	}

	r.mu.Lock()
	dir, err := fsys.Opendir(rest)
	r.mu.Unlock()
	if err != nil {
		return nil, r.fail(data.PathErr("opendir", path, err))
	}
	return dir, nil
}

// Readdir returns the next entry of dir, or nil at its end.
func (r *Runtime) Readdir(dir *fs.Directory) (*data.DirEntry, error) {
	r.begin()
	if dir == nil {
		return nil, r.fail(data.EBADF)
	}

	entry, err := dir.Read()
	return entry, r.fail(err)
}

func (r *Runtime) Rewinddir(dir *fs.Directory) error {
	r.begin()
	if dir == nil {
		return r.fail(data.EBADF)
	}
	return r.fail(dir.Rewind())
}

func (r *Runtime) Closedir(dir *fs.Directory) error {
	r.begin()
	if dir == nil {
		return r.fail(data.EBADF)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fail(dir.Close())
}
