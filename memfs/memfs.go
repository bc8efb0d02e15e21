// Package memfs is an in-memory filesystem driver. The namespace lives in a
// B-tree keyed by absolute path, so directory listings are ordered range
// scans. Sync writes an image of the whole tree to the bound block device and
// Mount loads it back, which makes the tree persistent on non-volatile
// devices.
package memfs

import (
	"encoding/binary"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
	"github.com/tidwall/btree"
)

type node struct {
	id    uuid.UUID
	mode  data.FileMode
	data  []byte
	atime time.Time
	mtime time.Time
	ctime time.Time
}

func newNode(mode data.FileMode) *node {
	now := time.Now()
	return &node{
		id:    uuid.Must(uuid.NewV7()),
		mode:  mode,
		atime: now,
		mtime: now,
		ctime: now,
	}
}

// ino folds the random half of the node id into an inode number.
func (n *node) ino() uint64 {
	return binary.BigEndian.Uint64(n.id[8:])
}

// Driver implements fs.Driver.
type Driver struct {
	mu sync.RWMutex

	paths *btree.Map[string, *node]
	bdev  blockdev.BlockDevice
	used  int64
	dirty bool
}

var _ fs.Driver = (*Driver)(nil)

func New() *Driver {
	d := &Driver{
		paths: btree.NewMap[string, *node](0),
		used:  recordSize("/", 0),
	}
	d.paths.Set("/", newNode(data.ModeDir|0755))
	return d
}

func (d *Driver) Mount(bdev blockdev.BlockDevice, flags data.MountFlags) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	paths, used, err := loadImage(bdev)
	if err != nil {
		return err
	}
	if paths == nil {
		paths, used = d.paths, measure(d.paths)
	}

	d.bdev = bdev
	if used > d.capacity() {
		d.bdev = nil
		return data.ENOSPC
	}

	d.paths = paths
	d.used = used
	d.dirty = false
	return nil
}

// measure returns the projected image payload of paths.
func measure(paths *btree.Map[string, *node]) int64 {
	var used int64
	paths.Scan(func(p string, n *node) bool {
		used += recordSize(p, len(n.data))
		return true
	})
	return used
}

func (d *Driver) Unmount() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bdev = nil
	return nil
}

// Sync writes the tree image if anything changed since the last sync.
func (d *Driver) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.syncLocked()
}

func (d *Driver) syncLocked() error {
	if d.bdev == nil || !d.dirty {
		return nil
	}
	if err := storeImage(d.bdev, d.paths); err != nil {
		return err
	}
	d.dirty = false
	return d.bdev.Sync()
}

// capacity is the payload size an image on the block device may have.
// used tracks the projected payload and never exceeds it, so Sync cannot
// run out of space.
func (d *Driver) capacity() int64 {
	if d.bdev == nil {
		return 0
	}
	return int64(d.bdev.BlockSize())*d.bdev.NumBlocks() - headerSize
}

func (d *Driver) reserve(delta int64) bool {
	if delta > 0 && d.used+delta > d.capacity() {
		return false
	}
	d.used += delta
	return true
}

func clean(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", data.ENOENT
	}
	return path.Clean(p), nil
}

// childPrefix is the key prefix shared by all entries below dir.
func childPrefix(dir string) string {
	if dir == "/" {
		return dir
	}
	return dir + "/"
}

func (d *Driver) lookup(p string) (string, *node, error) {
	p, err := clean(p)
	if err != nil {
		return "", nil, err
	}
	n, ok := d.paths.Get(p)
	if !ok {
		return p, nil, data.ENOENT
	}
	return p, n, nil
}

func (d *Driver) parent(p string) (*node, error) {
	n, ok := d.paths.Get(path.Dir(p))
	if !ok {
		return nil, data.ENOENT
	}
	if !n.mode.IsDir() {
		return nil, data.ENOTDIR
	}
	return n, nil
}

func (d *Driver) hasChildren(dir string) bool {
	prefix := childPrefix(dir)
	found := false
	d.paths.Ascend(prefix, func(key string, _ *node) bool {
		if key == dir {
			return true
		}
		found = strings.HasPrefix(key, prefix)
		return false
	})
	return found
}

func (d *Driver) Stat(p string, st *data.Stat) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	d.fill(n, st)
	return nil
}

func (d *Driver) fill(n *node, st *data.Stat) {
	st.Ino = n.ino()
	st.Mode = n.mode
	st.Nlink = 1
	if n.mode.IsDir() {
		st.Nlink = 2
	}
	st.Size = int64(len(n.data))
	if d.bdev != nil {
		st.BlockSize = int64(d.bdev.BlockSize())
		st.Blocks = (st.Size + st.BlockSize - 1) / st.BlockSize
	}
	st.AccessTime = n.atime
	st.ModifyTime = n.mtime
	st.ChangeTime = n.ctime
}

func (d *Driver) Chmod(p string, mode data.FileMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	n.mode = n.mode&data.ModeType | mode&data.ModePerm
	n.ctime = time.Now()
	d.dirty = true
	return nil
}

func (d *Driver) Truncate(p string, size int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	return d.truncate(n, size)
}

func (d *Driver) truncate(n *node, size int64) error {
	if n.mode.IsDir() {
		return data.EISDIR
	}
	if !d.reserve(contentSize(int(size)) - contentSize(len(n.data))) {
		return data.ENOSPC
	}

	if size <= int64(len(n.data)) {
		n.data = n.data[:size]
	} else {
		n.data = append(n.data, make([]byte, size-int64(len(n.data)))...)
	}
	n.mtime = time.Now()
	n.ctime = n.mtime
	d.dirty = true
	return nil
}

func (d *Driver) Rename(from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	from, src, err := d.lookup(from)
	if err != nil {
		return err
	}
	to, err = clean(to)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if from == "/" || strings.HasPrefix(to, childPrefix(from)) {
		return data.EINVAL
	}
	if _, err := d.parent(to); err != nil {
		return err
	}

	delta := recordSize(to, len(src.data)) - recordSize(from, len(src.data))
	dst, replace := d.paths.Get(to)
	if replace {
		switch {
		case src.mode.IsDir() && !dst.mode.IsDir():
			return data.ENOTDIR
		case !src.mode.IsDir() && dst.mode.IsDir():
			return data.EISDIR
		case dst.mode.IsDir() && d.hasChildren(to):
			return data.ENOTEMPTY
		}
		delta -= recordSize(to, len(dst.data))
	}

	// Collect the subtree first, the tree must not change while scanning.
	var moved []string
	prefix := childPrefix(from)
	d.paths.Ascend(prefix, func(key string, n *node) bool {
		if key == from {
			return true
		}
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		moved = append(moved, key)
		delta += recordSize(to+"/"+strings.TrimPrefix(key, prefix), len(n.data)) - recordSize(key, len(n.data))
		return true
	})

	if !d.reserve(delta) {
		return data.ENOSPC
	}
	if replace {
		d.paths.Delete(to)
	}
	d.paths.Delete(from)
	d.paths.Set(to, src)
	for _, key := range moved {
		n, _ := d.paths.Delete(key)
		d.paths.Set(to+"/"+strings.TrimPrefix(key, prefix), n)
	}

	src.ctime = time.Now()
	d.dirty = true
	return nil
}

func (d *Driver) Unlink(p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	if n.mode.IsDir() {
		return data.EISDIR
	}

	d.paths.Delete(p)
	d.used -= recordSize(p, len(n.data))
	d.dirty = true
	return nil
}

func (d *Driver) Utime(p string, times *data.Utimbuf) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, n, err := d.lookup(p)
	if err != nil {
		return err
	}

	now := time.Now()
	if times == nil {
		n.atime, n.mtime = now, now
	} else {
		n.atime, n.mtime = times.AccessTime, times.ModifyTime
	}
	n.ctime = now
	d.dirty = true
	return nil
}

func (d *Driver) Mkdir(p string, mode data.FileMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, _, err := d.lookup(p)
	if err == nil {
		return data.EEXIST
	}
	if p == "" {
		return err
	}
	if _, err := d.parent(p); err != nil {
		return err
	}
	if !d.reserve(recordSize(p, 0)) {
		return data.ENOSPC
	}

	d.paths.Set(p, newNode(data.ModeDir|mode&data.ModePerm))
	d.dirty = true
	return nil
}

func (d *Driver) Rmdir(p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	if !n.mode.IsDir() {
		return data.ENOTDIR
	}
	if p == "/" {
		return data.EBUSY
	}
	if d.hasChildren(p) {
		return data.ENOTEMPTY
	}

	d.paths.Delete(p)
	d.used -= recordSize(p, 0)
	d.dirty = true
	return nil
}

func (d *Driver) NewFile() fs.File {
	return &File{driver: d}
}

func (d *Driver) NewDirectory() fs.DirectoryOps {
	return &Directory{driver: d}
}
