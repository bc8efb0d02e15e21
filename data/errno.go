package data

import "fmt"

// Errno is the error code carried by every failure of the runtime.
// Values and names follow POSIX errno so callers can map them one to one.
type Errno int

// Error codes used by the runtime.
const (
	ENOENT    Errno = 2   // no such file or directory
	EIO       Errno = 5   // input/output error
	EBADF     Errno = 9   // bad file descriptor
	EAGAIN    Errno = 11  // resource temporarily unavailable
	EFAULT    Errno = 14  // bad address
	EBUSY     Errno = 16  // device or resource busy
	EEXIST    Errno = 17  // file exists
	ENODEV    Errno = 19  // no such device
	ENOTDIR   Errno = 20  // not a directory
	EISDIR    Errno = 21  // is a directory
	EINVAL    Errno = 22  // invalid argument
	ENFILE    Errno = 23  // too many open files in system
	ENOTTY    Errno = 25  // inappropriate ioctl for device
	ENOSPC    Errno = 28  // no space left on device
	ESPIPE    Errno = 29  // illegal seek
	EROFS     Errno = 30  // read-only file system
	ERANGE    Errno = 34  // result too large
	ENOSYS    Errno = 38  // function not implemented
	ENOTEMPTY Errno = 39  // directory not empty
	ENOSR     Errno = 63  // out of streams resources
	ENOTSOCK  Errno = 88  // socket operation on non-socket
	ETIMEDOUT Errno = 110 // connection timed out
)

var errnoInfo = map[Errno]struct{ name, text string }{
	ENOENT:    {"ENOENT", "no such file or directory"},
	EIO:       {"EIO", "input/output error"},
	EBADF:     {"EBADF", "bad file descriptor"},
	EAGAIN:    {"EAGAIN", "resource temporarily unavailable"},
	EFAULT:    {"EFAULT", "bad address"},
	EBUSY:     {"EBUSY", "device or resource busy"},
	EEXIST:    {"EEXIST", "file exists"},
	ENODEV:    {"ENODEV", "no such device"},
	ENOTDIR:   {"ENOTDIR", "not a directory"},
	EISDIR:    {"EISDIR", "is a directory"},
	EINVAL:    {"EINVAL", "invalid argument"},
	ENFILE:    {"ENFILE", "too many open files"},
	ENOTTY:    {"ENOTTY", "inappropriate ioctl for device"},
	ENOSPC:    {"ENOSPC", "no space left on device"},
	ESPIPE:    {"ESPIPE", "illegal seek"},
	EROFS:     {"EROFS", "read-only file system"},
	ERANGE:    {"ERANGE", "result too large"},
	ENOSYS:    {"ENOSYS", "function not implemented"},
	ENOTEMPTY: {"ENOTEMPTY", "directory not empty"},
	ENOSR:     {"ENOSR", "out of streams resources"},
	ENOTSOCK:  {"ENOTSOCK", "socket operation on non-socket"},
	ETIMEDOUT: {"ETIMEDOUT", "timed out"},
}

func (e Errno) Error() string {
	if info, ok := errnoInfo[e]; ok {
		return "pio: " + info.text
	}
	return fmt.Sprintf("pio: errno %d", int(e))
}

// Name returns the POSIX symbol for e, e.g. "EBADF".
func (e Errno) Name() string {
	if e == 0 {
		return "OK"
	}
	if info, ok := errnoInfo[e]; ok {
		return info.name
	}
	return fmt.Sprintf("E%d", int(e))
}
