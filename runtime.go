// Package pio is a POSIX-style I/O runtime for systems without an operating
// system kernel. A Runtime bundles the descriptor table, the device registry,
// the mount manager and an optional socket stack, and exposes the familiar
// call surface over them: open, read, write, close, stat, mkdir, opendir,
// socket and the rest.
//
// Every call returns its failure as an error and also records its error code,
// readable through Errno until the next call.
package pio

import (
	"sync"
	"sync/atomic"

	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
	"github.com/mwantia/pio/fdtable"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/mount"
	"github.com/mwantia/pio/socket"
)

// Runtime is the POSIX call surface of the I/O core.
type Runtime struct {
	// mu guards the tables. Hooks that may block run outside of it.
	mu sync.RWMutex

	log     *log.Logger
	fds     *fdtable.Table
	devices *device.Registry
	mounts  *mount.Manager
	sockets *socket.Stack

	errno atomic.Int32
}

func New(opts ...RuntimeOption) (*Runtime, error) {
	options := newDefaultRuntimeOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("pio", options.LogLevel, options.LogFile, options.NoTerminalLog)
	}

	mountOpts := []mount.ManagerOption{
		mount.WithMaxMounts(options.MaxMounts),
		mount.WithLogger(logger.Named("mount")),
	}
	if options.LongestPrefix {
		mountOpts = append(mountOpts, mount.WithLongestPrefixMatch())
	}

	mounts, err := mount.NewManager(mountOpts...)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		log: logger,
		fds: fdtable.New(options.MaxOpenFiles, logger.Named("fdtable")),
		devices: device.NewRegistry(options.MaxDevices,
			device.WithPrefix(options.DevicePrefix),
			device.WithLogger(logger.Named("device"))),
		mounts:  mounts,
		sockets: options.Sockets,
	}, nil
}

func (r *Runtime) Logger() *log.Logger {
	return r.log
}

// Errno returns the error code of the last call, or 0 if it succeeded.
func (r *Runtime) Errno() data.Errno {
	return data.Errno(r.errno.Load())
}

func (r *Runtime) begin() {
	r.errno.Store(0)
}

func (r *Runtime) fail(err error) error {
	if err != nil {
		r.errno.Store(int32(data.ErrnoOf(err)))
	}
	return err
}

// Register adds dev to the device registry under the device prefix.
func (r *Runtime) Register(dev device.Device) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fail(r.devices.Add(dev))
}

// Unregister removes dev. An open device must be closed first.
func (r *Runtime) Unregister(dev device.Device) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.devices.Lookup(dev.Name()); ok && e.Device == dev && e.Handle.IsOpen() {
		return r.fail(data.EBUSY)
	}
	r.devices.Remove(dev)
	return nil
}

// Devices lists the registered devices.
func (r *Runtime) Devices() []*device.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.devices.Devices()
}

// DevicePrefix returns the path prefix devices are opened under.
func (r *Runtime) DevicePrefix() string {
	return r.devices.Prefix()
}

func (r *Runtime) Mount(fsys *fs.FileSystem, prefix string, bdev blockdev.BlockDevice, flags data.MountFlags) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fail(data.PathErr("mount", prefix, r.mounts.Mount(fsys, prefix, bdev, flags)))
}

func (r *Runtime) SetRoot(fsys *fs.FileSystem, bdev blockdev.BlockDevice, flags data.MountFlags) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fail(data.PathErr("mount", mount.RootPrefix, r.mounts.SetRoot(fsys, bdev, flags)))
}

func (r *Runtime) Umount(prefix string, flags data.MountFlags) error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fail(data.PathErr("umount", prefix, r.mounts.Umount(prefix, flags)))
}

// Mounts lists the mounted filesystems, the root first.
func (r *Runtime) Mounts() []*mount.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.mounts.Mounts()
}

// Sync flushes every mounted filesystem. It never fails; individual
// failures are logged.
func (r *Runtime) Sync() {
	r.begin()
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.mounts.Sync()
}

// OpenDescriptors returns the number of descriptors in use.
func (r *Runtime) OpenDescriptors() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.fds.InUse()
}

// Teardown closes every open descriptor and unmounts all filesystems.
func (r *Runtime) Teardown() error {
	r.begin()
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []*handle.Handle
	r.fds.Each(func(fd int, h *handle.Handle) bool {
		open = append(open, h)
		return true
	})

	errs := &data.Errors{}
	for _, h := range open {
		errs.Add(h.Close(r.fds))
	}
	errs.Add(r.mounts.Shutdown())

	if errs.Len() > 0 {
		r.log.Warn("Teardown: %d failures", errs.Len())
	}
	return r.fail(errs.Errors())
}
