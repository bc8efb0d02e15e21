package data

// FileMode represents file type and permission bits.
// It follows Unix file mode conventions with type and permission bits.
type FileMode uint32

// File mode constants for type and permission bits.
const (
	// Type bits
	ModeDir        FileMode = 1 << 31 // d: directory
	ModeSymlink    FileMode = 1 << 30 // L: symbolic link
	ModeNamedPipe  FileMode = 1 << 29 // p: named pipe (FIFO)
	ModeSocket     FileMode = 1 << 28 // S: socket
	ModeDevice     FileMode = 1 << 27 // D: block device
	ModeCharDevice FileMode = 1 << 26 // c: character device
	ModeIrregular  FileMode = 1 << 25 // ?: non-regular file
	ModeMount      FileMode = 1 << 24 // M: mount point

	ModeType = ModeDir | ModeSymlink | ModeNamedPipe | ModeSocket | ModeDevice | ModeCharDevice | ModeIrregular | ModeMount

	// Permission bits
	ModePerm FileMode = 0777
)

func (m FileMode) IsDir() bool {
	return m&ModeDir != 0
}

func (m FileMode) IsSocket() bool {
	return m&ModeSocket != 0
}

// IsDevice reports whether m describes a block device.
func (m FileMode) IsDevice() bool {
	return m&ModeDevice != 0
}

func (m FileMode) IsCharDevice() bool {
	return m&ModeCharDevice != 0
}

// IsRegular reports whether m describes a regular file.
func (m FileMode) IsRegular() bool {
	return m&ModeType == 0
}

// Perm returns the Unix permission bits in m.
func (m FileMode) Perm() FileMode {
	return m & ModePerm
}

// String returns a textual representation of the mode in ls -l format,
// e.g. "drwxr-xr-x".
func (m FileMode) String() string {
	const str = "dLpSDc?M" // bits 31-24
	var buf [32]byte
	w := 0

	for i, c := range str {
		if m&(1<<uint(32-1-i)) != 0 {
			buf[w] = byte(c)
			w++
		}
	}

	if w == 0 {
		buf[w] = '-'
		w++
	}

	const rwx = "rwxrwxrwx"
	for i, c := range rwx {
		if m&(1<<uint(9-1-i)) != 0 {
			buf[w] = byte(c)
		} else {
			buf[w] = '-'
		}
		w++
	}

	return string(buf[:w])
}
