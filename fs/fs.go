// Package fs is the file-system facade. A FileSystem wraps a Driver with the
// pooled file and directory objects, the bound block device and the
// precondition checks every path operation shares.
//
// A FileSystem is not synchronized. Mounting, unmounting and opening are
// expected to happen from one thread at a time.
package fs

import (
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/pool"
)

const (
	DefaultFiles       = 4
	DefaultDirectories = 2
)

type Options struct {
	Files       int
	Directories int
	Logger      *log.Logger
}

type Option func(*Options) error

// WithFiles sets how many files can be open on this filesystem at once.
func WithFiles(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return data.EINVAL
		}
		o.Files = n
		return nil
	}
}

// WithDirectories sets how many directories can be open at once.
func WithDirectories(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return data.EINVAL
		}
		o.Directories = n
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

type FileSystem struct {
	log    *log.Logger
	name   string
	driver Driver

	bdev  blockdev.BlockDevice
	flags data.MountFlags

	files *pool.Pool[*handle.Handle]
	dirs  *pool.Pool[*Directory]
}

// New builds the filesystem and all of its pooled objects.
func New(name string, driver Driver, opts ...Option) (*FileSystem, error) {
	if driver == nil {
		return nil, data.EINVAL
	}

	options := &Options{
		Files:       DefaultFiles,
		Directories: DefaultDirectories,
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.Logger == nil {
		options.Logger = log.Discard()
	}

	fsys := &FileSystem{
		log:    options.Logger.Named(name),
		name:   name,
		driver: driver,
	}

	fsys.files = pool.New(options.Files, func(int) *handle.Handle {
		h := handle.New(handle.KindFile, driver.NewFile())
		h.SetReleaser(fsys.releaseFile)
		return h
	})
	fsys.dirs = pool.New(options.Directories, func(int) *Directory {
		return &Directory{
			fs:  fsys,
			ops: driver.NewDirectory(),
		}
	})

	return fsys, nil
}

func (fsys *FileSystem) releaseFile(h *handle.Handle) bool {
	return fsys.files.Release(h)
}

func (fsys *FileSystem) Name() string {
	return fsys.name
}

func (fsys *FileSystem) Driver() Driver {
	return fsys.driver
}

// BlockDevice returns the bound block device, or nil while unmounted.
func (fsys *FileSystem) BlockDevice() blockdev.BlockDevice {
	return fsys.bdev
}

func (fsys *FileSystem) IsMounted() bool {
	return fsys.bdev != nil
}

func (fsys *FileSystem) IsReadOnly() bool {
	return fsys.flags.IsReadOnly()
}

// OpenFiles returns the number of open files and directories.
func (fsys *FileSystem) OpenFiles() int {
	return fsys.files.InUse() + fsys.dirs.InUse()
}

// Bind opens bdev and runs the driver's mount hook. It fails with EBUSY if
// a block device is already bound.
func (fsys *FileSystem) Bind(bdev blockdev.BlockDevice, flags data.MountFlags) error {
	if bdev == nil {
		return data.EINVAL
	}
	if fsys.bdev != nil {
		fsys.log.Error("Bind: already bound to '%s'", fsys.bdev.Name())
		return data.EBUSY
	}

	if err := bdev.Open(); err != nil {
		fsys.log.Error("Bind: failed to open block device '%s': %v", bdev.Name(), err)
		return err
	}
	if err := fsys.driver.Mount(bdev, flags); err != nil {
		fsys.log.Error("Bind: mount hook failed on '%s': %v", bdev.Name(), err)
		bdev.Close()
		return err
	}

	fsys.bdev = bdev
	fsys.flags = flags
	fsys.log.Debug("Bind: bound to '%s'", bdev.Name())
	return nil
}

// Unbind syncs, runs the unmount hook and closes the block device. Open
// files or directories make it fail with EBUSY and a failed sync returns
// its error with the filesystem still bound, unless MountForce is set.
func (fsys *FileSystem) Unbind(flags data.MountFlags) error {
	if fsys.bdev == nil {
		return data.EINVAL
	}
	if open := fsys.OpenFiles(); open > 0 && !flags.IsForce() {
		fsys.log.Warn("Unbind: %d objects still open", open)
		return data.EBUSY
	}

	errs := &data.Errors{}
	if err := fsys.driver.Sync(); err != nil {
		if !flags.IsForce() {
			fsys.log.Error("Unbind: sync of '%s' failed: %v", fsys.bdev.Name(), err)
			return err
		}
		errs.Add(err)
	}
	errs.Add(fsys.driver.Unmount())
	errs.Add(fsys.bdev.Close())

	fsys.log.Debug("Unbind: released '%s'", fsys.bdev.Name())
	fsys.bdev = nil
	fsys.flags = 0
	return errs.Errors()
}

// Sync flushes the driver. An unmounted filesystem has nothing to flush.
func (fsys *FileSystem) Sync() error {
	if fsys.bdev == nil {
		return nil
	}
	return fsys.driver.Sync()
}

func (fsys *FileSystem) check(path string) error {
	if fsys.bdev == nil {
		return data.ENODEV
	}
	if path == "" {
		return data.ENOENT
	}
	return nil
}

func (fsys *FileSystem) checkWrite(path string) error {
	if err := fsys.check(path); err != nil {
		return err
	}
	if fsys.flags.IsReadOnly() {
		return data.EROFS
	}
	return nil
}

// Open acquires a file object and runs its open hook with path. Pool
// exhaustion fails with ENOSR.
func (fsys *FileSystem) Open(path string, opts data.OpenOptions) (*handle.Handle, error) {
	if err := fsys.check(path); err != nil {
		return nil, err
	}
	if fsys.flags.IsReadOnly() && (opts.Flags.CanWrite() || opts.Flags.HasCreate() || opts.Flags.HasTrunc()) {
		return nil, data.EROFS
	}

	h, ok := fsys.files.Acquire()
	if !ok {
		fsys.log.Warn("Open: all %d files in use", fsys.files.Capacity())
		return nil, data.ENOSR
	}

	if err := h.Impl().(File).Open(path, opts); err != nil {
		fsys.files.Release(h)
		return nil, err
	}

	h.SetFlags(opts.Flags)
	fsys.log.Debug("Open: %s", path)
	return h, nil
}

// Opendir acquires a directory object and runs its open hook with path.
func (fsys *FileSystem) Opendir(path string) (*Directory, error) {
	if err := fsys.check(path); err != nil {
		return nil, err
	}

	dir, ok := fsys.dirs.Acquire()
	if !ok {
		fsys.log.Warn("Opendir: all %d directories in use", fsys.dirs.Capacity())
		return nil, data.ENOSR
	}

	if err := dir.ops.Open(path); err != nil {
		fsys.dirs.Release(dir)
		return nil, err
	}

	dir.open = true
	fsys.log.Debug("Opendir: %s", path)
	return dir, nil
}

func (fsys *FileSystem) Stat(path string, st *data.Stat) error {
	if st == nil {
		return data.EFAULT
	}
	if err := fsys.check(path); err != nil {
		return err
	}
	st.Reset()
	return fsys.driver.Stat(path, st)
}

func (fsys *FileSystem) Chmod(path string, mode data.FileMode) error {
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	return fsys.driver.Chmod(path, mode)
}

func (fsys *FileSystem) Truncate(path string, size int64) error {
	if size < 0 {
		return data.EINVAL
	}
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	return fsys.driver.Truncate(path, size)
}

func (fsys *FileSystem) Rename(from, to string) error {
	if err := fsys.checkWrite(from); err != nil {
		return err
	}
	if to == "" {
		return data.ENOENT
	}
	return fsys.driver.Rename(from, to)
}

func (fsys *FileSystem) Unlink(path string) error {
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	return fsys.driver.Unlink(path)
}

func (fsys *FileSystem) Utime(path string, times *data.Utimbuf) error {
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	return fsys.driver.Utime(path, times)
}

func (fsys *FileSystem) Mkdir(path string, mode data.FileMode) error {
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	return fsys.driver.Mkdir(path, mode&data.ModePerm)
}

func (fsys *FileSystem) Rmdir(path string) error {
	if err := fsys.checkWrite(path); err != nil {
		return err
	}
	if path == "/" {
		return data.EBUSY
	}
	return fsys.driver.Rmdir(path)
}
