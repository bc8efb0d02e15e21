package handle

import "github.com/mwantia/pio/data"

// Ops is the hook set every implementation object provides. Hooks are only
// reached through a Handle, after the generic preconditions were checked.
type Ops interface {
	// Close releases implementation state. It runs before the descriptor is
	// freed and the object goes back to its pool.
	Close() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Ioctl(req data.IoctlRequest) error
	Fcntl(cmd data.FcntlCommand, arg int) (int, error)
	Isatty() bool
	Fstat(st *data.Stat) error
	// Connected reports whether a stream is still usable; a broken link fails
	// reads and writes with EIO.
	Connected() bool
}

// VectorWriter is implemented by objects with a native gathered write.
// Without it Writev falls back to one Write per vector.
type VectorWriter interface {
	Writev(iov [][]byte) (int, error)
}

// FileOps adds the hooks only regular files support.
type FileOps interface {
	Ops
	Lseek(offset int64, whence int) (int64, error)
	Ftruncate(size int64) error
	Fsync() error
}

// Unimplemented provides the fail-safe defaults: every hook fails with
// ENOSYS, except Close which succeeds so that a partial implementation can
// still be closed, Isatty which is false and Connected which is true.
// Embed it and override what the object supports.
type Unimplemented struct{}

func (Unimplemented) Close() error {
	return nil
}

func (Unimplemented) Read([]byte) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) Write([]byte) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) Ioctl(data.IoctlRequest) error {
	return data.ENOSYS
}

func (Unimplemented) Fcntl(data.FcntlCommand, int) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) Isatty() bool {
	return false
}

func (Unimplemented) Fstat(*data.Stat) error {
	return data.ENOSYS
}

func (Unimplemented) Connected() bool {
	return true
}

// UnimplementedFile extends Unimplemented with the file-only hooks.
type UnimplementedFile struct {
	Unimplemented
}

func (UnimplementedFile) Lseek(int64, int) (int64, error) {
	return 0, data.ENOSYS
}

func (UnimplementedFile) Ftruncate(int64) error {
	return data.ENOSYS
}

func (UnimplementedFile) Fsync() error {
	return data.ENOSYS
}
