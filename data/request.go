package data

// IoctlRequest is implemented by the typed request values a device
// understands. Devices switch on the concrete type and reject the rest with
// ENOTTY.
type IoctlRequest interface {
	IoctlName() string
}

// FcntlCommand selects the fcntl operation.
type FcntlCommand int

const (
	FcntlGetFlags      FcntlCommand = iota + 1 // F_GETFL
	FcntlSetFlags                              // F_SETFL
	FcntlGetDescriptor                         // F_GETFD
	FcntlSetDescriptor                         // F_SETFD
)

// MountFlags control mount and umount.
type MountFlags uint32

const (
	MountReadOnly MountFlags = 1 << iota
	// MountForce lets umount proceed while files are still open.
	MountForce
)

func (f MountFlags) IsReadOnly() bool {
	return f&MountReadOnly != 0
}

func (f MountFlags) IsForce() bool {
	return f&MountForce != 0
}
