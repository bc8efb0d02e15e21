package fs

import (
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
)

// Driver is the contract a concrete filesystem implements. All paths are
// absolute and already stripped of the mount prefix.
type Driver interface {
	// Mount attaches the driver to its block device.
	Mount(bdev blockdev.BlockDevice, flags data.MountFlags) error
	// Unmount detaches the driver. Sync has already been called.
	Unmount() error
	Sync() error

	Stat(path string, st *data.Stat) error
	Chmod(path string, mode data.FileMode) error
	Truncate(path string, size int64) error
	Rename(from, to string) error
	Unlink(path string) error
	// Utime sets the timestamps of path; nil sets both to the current time.
	Utime(path string, times *data.Utimbuf) error
	Mkdir(path string, mode data.FileMode) error
	Rmdir(path string) error

	// NewFile and NewDirectory build the pooled implementation objects.
	// They are only called while the FileSystem is constructed.
	NewFile() File
	NewDirectory() DirectoryOps
}

// File is the implementation object behind an open file handle.
type File interface {
	handle.FileOps

	Open(path string, opts data.OpenOptions) error
}

// DirectoryOps is the implementation object behind an open directory.
type DirectoryOps interface {
	Open(path string) error
	// Read fills entry with the next directory entry. It reports false once
	// the end of the directory was reached.
	Read(entry *data.DirEntry) (bool, error)
	Rewind() error
	Close() error
}

// UnimplementedDriver fails every hook with ENOSYS. Mount, Unmount and Sync
// succeed so that a driver without state can still be mounted. Embed it and
// override the hooks the filesystem supports.
type UnimplementedDriver struct{}

func (UnimplementedDriver) Mount(blockdev.BlockDevice, data.MountFlags) error {
	return nil
}

func (UnimplementedDriver) Unmount() error {
	return nil
}

func (UnimplementedDriver) Sync() error {
	return nil
}

func (UnimplementedDriver) Stat(string, *data.Stat) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Chmod(string, data.FileMode) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Truncate(string, int64) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Rename(string, string) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Unlink(string) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Utime(string, *data.Utimbuf) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Mkdir(string, data.FileMode) error {
	return data.ENOSYS
}

func (UnimplementedDriver) Rmdir(string) error {
	return data.ENOSYS
}

func (UnimplementedDriver) NewFile() File {
	return &UnimplementedFileObject{}
}

func (UnimplementedDriver) NewDirectory() DirectoryOps {
	return UnimplementedDirectory{}
}

// UnimplementedFileObject is a file whose every hook fails with ENOSYS.
type UnimplementedFileObject struct {
	handle.UnimplementedFile
}

func (*UnimplementedFileObject) Open(string, data.OpenOptions) error {
	return data.ENOSYS
}

type UnimplementedDirectory struct{}

func (UnimplementedDirectory) Open(string) error {
	return data.ENOSYS
}

func (UnimplementedDirectory) Read(*data.DirEntry) (bool, error) {
	return false, data.ENOSYS
}

func (UnimplementedDirectory) Rewind() error {
	return data.ENOSYS
}

func (UnimplementedDirectory) Close() error {
	return nil
}
