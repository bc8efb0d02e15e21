package handle

import "strings"

// Kind tags what a handle dispatches to.
type Kind uint8

const KindUnset Kind = 0

const (
	KindDevice Kind = 1 << iota
	KindFile
	KindSocket
	// KindTTY is a flag combined with KindDevice for terminal-like devices.
	KindTTY
)

// Is reports whether every bit of k is set.
func (k Kind) Is(other Kind) bool {
	return other != KindUnset && k&other == other
}

func (k Kind) String() string {
	if k == KindUnset {
		return "unset"
	}

	var parts []string
	if k&KindDevice != 0 {
		parts = append(parts, "device")
	}
	if k&KindFile != 0 {
		parts = append(parts, "file")
	}
	if k&KindSocket != 0 {
		parts = append(parts, "socket")
	}
	if k&KindTTY != 0 {
		parts = append(parts, "tty")
	}
	return strings.Join(parts, "|")
}
