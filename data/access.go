package data

// AccessMode holds the flags a stream is opened with.
type AccessMode int

// Access mode flags. They can be combined using bitwise OR.
const (
	AccessModeRead     AccessMode = 1 << iota // O_RDONLY: open for reading
	AccessModeWrite                           // O_WRONLY: open for writing
	AccessModeAppend                          // O_APPEND: append to file
	AccessModeCreate                          // O_CREAT:  create if not exists
	AccessModeTrunc                           // O_TRUNC:  truncate on open
	AccessModeExcl                            // O_EXCL:   exclusive creation (with CREATE)
	AccessModeSync                            // O_SYNC:   synchronous I/O
	AccessModeNonBlock                        // O_NONBLOCK: never wait on device buffers

	AccessModeReadWrite = AccessModeRead | AccessModeWrite
)

// IsReadOnly checks if the mode only allows reading.
func (m AccessMode) IsReadOnly() bool {
	return m&AccessModeRead != 0 && m&AccessModeWrite == 0
}

// IsWriteOnly checks if the mode only allows writing.
func (m AccessMode) IsWriteOnly() bool {
	return m&AccessModeWrite != 0 && m&AccessModeRead == 0
}

// IsReadWrite checks if the mode allows both reading and writing.
func (m AccessMode) IsReadWrite() bool {
	return m&AccessModeRead != 0 && m&AccessModeWrite != 0
}

// CanRead reports whether reading is allowed at all.
func (m AccessMode) CanRead() bool {
	return m&AccessModeRead != 0
}

// CanWrite reports whether writing is allowed at all.
func (m AccessMode) CanWrite() bool {
	return m&AccessModeWrite != 0
}

func (m AccessMode) HasAppend() bool {
	return m&AccessModeAppend != 0
}

func (m AccessMode) HasCreate() bool {
	return m&AccessModeCreate != 0
}

func (m AccessMode) HasTrunc() bool {
	return m&AccessModeTrunc != 0
}

func (m AccessMode) HasExcl() bool {
	return m&AccessModeExcl != 0
}

func (m AccessMode) HasSync() bool {
	return m&AccessModeSync != 0
}

func (m AccessMode) HasNonBlock() bool {
	return m&AccessModeNonBlock != 0
}

// OpenOptions replaces the variadic flags/mode pair of open(2).
type OpenOptions struct {
	Flags AccessMode
	// Mode is applied when Flags contains AccessModeCreate.
	Mode FileMode
}

// ReadOnly returns options for a plain read-only open.
func ReadOnly() OpenOptions {
	return OpenOptions{Flags: AccessModeRead}
}

// ReadWrite returns options for a read-write open.
func ReadWrite() OpenOptions {
	return OpenOptions{Flags: AccessModeReadWrite}
}

// Create returns options creating a file with the given permission bits.
func Create(perm FileMode) OpenOptions {
	return OpenOptions{
		Flags: AccessModeReadWrite | AccessModeCreate | AccessModeTrunc,
		Mode:  perm & ModePerm,
	}
}
