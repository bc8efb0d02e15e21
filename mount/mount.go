// Package mount routes paths to mounted filesystems.
//
// The Manager holds a fixed number of prefix slots plus one optional root
// filesystem. Used slots are kept packed in registration order. By default
// a path resolves to the earliest registered entry whose prefix is a literal
// prefix of the path; with WithLongestPrefixMatch
// the longest such prefix wins. Paths no slot matches go to the root.
//
// The Manager is not synchronized. Mounting is expected to happen during
// startup or from a single thread.
package mount

import (
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/log"
)

// RootPrefix is reported for the root filesystem.
const RootPrefix = "/"

// Entry holds one mounted filesystem.
type Entry struct {
	ID          uuid.UUID
	Prefix      string
	FileSystem  *fs.FileSystem
	BlockDevice blockdev.BlockDevice
	Flags       data.MountFlags
	MountTime   time.Time
}

func (e *Entry) IsRoot() bool {
	return e.Prefix == RootPrefix
}

// Manager maps path prefixes to mounted filesystems.
type Manager struct {
	log     *log.Logger
	root    *Entry
	entries []*Entry
	longest bool
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := newDefaultManagerOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.Logger == nil {
		options.Logger = log.Discard()
	}

	return &Manager{
		log:     options.Logger,
		entries: make([]*Entry, options.MaxMounts),
		longest: options.LongestPrefix,
	}, nil
}

func (m *Manager) match(path string) *Entry {
	var best *Entry
	for _, e := range m.entries {
		if e == nil || !data.HasPrefix(path, e.Prefix) {
			continue
		}
		if !m.longest {
			return e
		}
		if best == nil || len(e.Prefix) > len(best.Prefix) {
			best = e
		}
	}
	return best
}

// Identify resolves path and returns the filesystem with the remaining
// path. The trailing slash of the matched prefix is kept, so the remainder
// is always absolute. A path resolved by the root is returned unchanged.
func (m *Manager) Identify(path string) (*fs.FileSystem, string, bool) {
	fsys, rest, _, ok := m.Identify2(path, "")
	return fsys, rest, ok
}

// Identify2 resolves path like Identify and strips the same prefix from
// path2. It does not check that path2 resolves to the same filesystem.
func (m *Manager) Identify2(path, path2 string) (*fs.FileSystem, string, string, bool) {
	if e := m.match(path); e != nil {
		if strip := len(e.Prefix) - 1; len(path2) >= strip {
			path2 = path2[strip:]
		}
		return e.FileSystem, data.ToRelativePath(path, e.Prefix), path2, true
	}
	if m.root != nil {
		return m.root.FileSystem, path, path2, true
	}
	return nil, path, path2, false
}

func (m *Manager) isMounted(fsys *fs.FileSystem) bool {
	_, ok := m.Find(fsys)
	return ok
}

// Mount binds bdev to fsys and installs it at prefix, which must be absolute
// and end in a slash. It fails with EBUSY if prefix is taken or fsys is
// already mounted, and with ENOSR if every slot is used.
func (m *Manager) Mount(fsys *fs.FileSystem, prefix string, bdev blockdev.BlockDevice, flags data.MountFlags) error {
	if fsys == nil || bdev == nil {
		return data.EINVAL
	}
	if prefix == RootPrefix {
		return m.SetRoot(fsys, bdev, flags)
	}
	if !data.IsMountPrefix(prefix) {
		m.log.Error("Mount: invalid prefix '%s'", prefix)
		return data.EINVAL
	}

	free := -1
	for i, e := range m.entries {
		if e == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if e.Prefix == prefix {
			m.log.Error("Mount: prefix '%s' already mounted", prefix)
			return data.EBUSY
		}
	}
	if m.isMounted(fsys) {
		m.log.Error("Mount: filesystem '%s' already mounted", fsys.Name())
		return data.EBUSY
	}
	if free < 0 {
		m.log.Warn("Mount: all %d mount slots in use", len(m.entries))
		return data.ENOSR
	}

	if err := fsys.Bind(bdev, flags); err != nil {
		return err
	}

	m.entries[free] = newEntry(prefix, fsys, bdev, flags)
	m.log.Info("Mount: '%s' on '%s' at %s", fsys.Name(), bdev.Name(), prefix)
	return nil
}

// SetRoot binds bdev to fsys and installs it as the root filesystem. It
// fails with EBUSY while a root is mounted.
func (m *Manager) SetRoot(fsys *fs.FileSystem, bdev blockdev.BlockDevice, flags data.MountFlags) error {
	if fsys == nil || bdev == nil {
		return data.EINVAL
	}
	if m.root != nil || m.isMounted(fsys) {
		m.log.Error("SetRoot: root or filesystem '%s' already mounted", fsys.Name())
		return data.EBUSY
	}

	if err := fsys.Bind(bdev, flags); err != nil {
		return err
	}

	m.root = newEntry(RootPrefix, fsys, bdev, flags)
	m.log.Info("SetRoot: '%s' on '%s'", fsys.Name(), bdev.Name())
	return nil
}

func newEntry(prefix string, fsys *fs.FileSystem, bdev blockdev.BlockDevice, flags data.MountFlags) *Entry {
	return &Entry{
		ID:          uuid.Must(uuid.NewV7()),
		Prefix:      prefix,
		FileSystem:  fsys,
		BlockDevice: bdev,
		Flags:       flags,
		MountTime:   time.Now(),
	}
}

// Umount syncs and unbinds the filesystem at prefix and frees its slot.
// Later entries move down, so the free slots stay at the tail.
// RootPrefix unmounts the root. Unknown prefixes fail with EINVAL, open files
// with EBUSY unless MountForce is given.
func (m *Manager) Umount(prefix string, flags data.MountFlags) error {
	var e *Entry
	slot := -1
	if prefix == RootPrefix {
		e = m.root
	} else {
		for i, entry := range m.entries {
			if entry != nil && entry.Prefix == prefix {
				e, slot = entry, i
				break
			}
		}
	}
	if e == nil {
		m.log.Error("Umount: '%s' is not mounted", prefix)
		return data.EINVAL
	}

	err := e.FileSystem.Unbind(flags)
	if e.FileSystem.IsMounted() {
		m.log.Warn("Umount: '%s' still in use: %v", prefix, err)
		return err
	}

	if slot < 0 {
		m.root = nil
	} else {
		copy(m.entries[slot:], m.entries[slot+1:])
		m.entries[len(m.entries)-1] = nil
	}
	m.log.Info("Umount: '%s' removed from %s", e.FileSystem.Name(), prefix)
	return err
}

// Sync flushes every mounted filesystem. Failures are logged and skipped.
func (m *Manager) Sync() {
	for _, e := range m.Mounts() {
		if err := e.FileSystem.Sync(); err != nil {
			m.log.Warn("Sync: '%s' at %s failed: %v", e.FileSystem.Name(), e.Prefix, err)
		}
	}
}

// Find returns the entry fsys is mounted with.
func (m *Manager) Find(fsys *fs.FileSystem) (*Entry, bool) {
	if m.root != nil && m.root.FileSystem == fsys {
		return m.root, true
	}
	for _, e := range m.entries {
		if e != nil && e.FileSystem == fsys {
			return e, true
		}
	}
	return nil, false
}

// Root returns the root entry, or nil.
func (m *Manager) Root() *Entry {
	return m.root
}

// Mounts lists the root first, then the prefix entries in registration order.
func (m *Manager) Mounts() []*Entry {
	out := make([]*Entry, 0, len(m.entries)+1)
	if m.root != nil {
		out = append(out, m.root)
	}
	for _, e := range m.entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Shutdown force-unmounts everything, the root last.
func (m *Manager) Shutdown() error {
	errs := &data.Errors{}
	for _, e := range m.Mounts() {
		if !e.IsRoot() {
			errs.Add(m.Umount(e.Prefix, data.MountForce))
		}
	}
	if m.root != nil {
		errs.Add(m.Umount(RootPrefix, data.MountForce))
	}
	return errs.Errors()
}
