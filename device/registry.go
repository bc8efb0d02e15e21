package device

import (
	"strings"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/log"
)

// DefaultPrefix is where devices appear in the path namespace.
const DefaultPrefix = "/dev/"

// Entry binds a registered device to the handle it is opened through.
type Entry struct {
	Device Device
	Handle *handle.Handle
}

// Registry is a bounded table of devices, matched in registration order. It
// is filled during startup and not synchronized.
type Registry struct {
	log     *log.Logger
	prefix  string
	entries []*Entry
}

type RegistryOption func(*Registry)

// WithPrefix replaces DefaultPrefix. A missing trailing slash is added.
func WithPrefix(prefix string) RegistryOption {
	return func(r *Registry) {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		r.prefix = prefix
	}
}

func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = logger
	}
}

func NewRegistry(capacity int, opts ...RegistryOption) *Registry {
	r := &Registry{
		log:     log.Discard(),
		prefix:  DefaultPrefix,
		entries: make([]*Entry, capacity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Prefix() string {
	return r.prefix
}

// Add registers dev in the first free slot. Duplicate names fail with EEXIST,
// a full registry with ENOSR.
func (r *Registry) Add(dev Device) error {
	if dev == nil {
		return data.EINVAL
	}

	free := -1
	for i, e := range r.entries {
		if e == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if e.Device == dev || e.Device.Name() == dev.Name() {
			r.log.Error("Add: device '%s' already registered", dev.Name())
			return data.EEXIST
		}
	}

	if free < 0 {
		r.log.Warn("Add: registry full, cannot add '%s'", dev.Name())
		return data.ENOSR
	}

	kind := handle.KindDevice
	if dev.Isatty() {
		kind |= handle.KindTTY
	}

	r.entries[free] = &Entry{
		Device: dev,
		Handle: handle.New(kind, dev),
	}
	r.log.Debug("Add: registered %s%s as %s", r.prefix, dev.Name(), kind)
	return nil
}

// Remove unregisters dev. Unknown devices are ignored.
func (r *Registry) Remove(dev Device) {
	for i, e := range r.entries {
		if e != nil && e.Device == dev {
			r.entries[i] = nil
			r.log.Debug("Remove: unregistered %s%s", r.prefix, dev.Name())
			return
		}
	}
}

// Identify returns the first device whose MatchName accepts the remainder
// of path after the prefix, together with that remainder.
func (r *Registry) Identify(path string) (*Entry, string, bool) {
	name, ok := strings.CutPrefix(path, r.prefix)
	if !ok {
		return nil, "", false
	}

	for _, e := range r.entries {
		if e != nil && e.Device.MatchName(name) {
			return e, name, true
		}
	}
	return nil, name, false
}

// Lookup returns the entry registered under exactly name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	for _, e := range r.entries {
		if e != nil && e.Device.Name() == name {
			return e, true
		}
	}
	return nil, false
}

// Devices returns the registered entries in slot order.
func (r *Registry) Devices() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
