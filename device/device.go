// Package device holds the character device contract and the registry that
// routes /dev paths to registered devices.
package device

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
)

// Device is a named, long-lived stream registered once at startup.
type Device interface {
	handle.Ops

	// Name returns the name the device is registered under, without prefix.
	Name() string
	// MatchName reports whether a path remainder selects this device.
	MatchName(name string) bool
	// Open prepares the device for use. name is the path after the registry
	// prefix.
	Open(name string, opts data.OpenOptions) error
}

// Base gives devices the exact-name matcher and the not-implemented hook
// defaults. Embed it and override the hooks the device supports.
type Base struct {
	handle.Unimplemented

	name string
}

func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) MatchName(name string) bool {
	return name == b.name
}

func (b *Base) Open(string, data.OpenOptions) error {
	return data.ENOSYS
}

// Fstat reports a character device.
func (b *Base) Fstat(st *data.Stat) error {
	st.Mode = data.ModeCharDevice | 0666
	return nil
}
