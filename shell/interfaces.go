package shell

import (
	"context"
	"io"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/mount"
)

// API is the part of the runtime commands operate on.
type API interface {
	// Open returns a descriptor for a device or a file on a mounted filesystem.
	Open(path string, opts data.OpenOptions) (int, error)
	Close(fd int) error
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)

	Stat(path string, st *data.Stat) error
	Chmod(path string, mode data.FileMode) error
	Mkdir(path string, mode data.FileMode) error
	Rmdir(path string) error
	Unlink(path string) error
	Rename(from, to string) error

	Opendir(path string) (*fs.Directory, error)
	// Readdir returns nil once the directory is exhausted.
	Readdir(dir *fs.Directory) (*data.DirEntry, error)
	Closedir(dir *fs.Directory) error

	Devices() []*device.Entry
	DevicePrefix() string
	Mounts() []*mount.Entry
	// Sync flushes every mounted filesystem. It never fails.
	Sync()

	Logger() *log.Logger
}

// Command represents an executable shell command.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls -l [path]")
	Usage() string

	// Execute runs the command with parsed arguments.
	// The writer parameter is where command output should be written.
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
