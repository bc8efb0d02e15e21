package memfs

import (
	"path"
	"strings"

	"github.com/mwantia/pio/data"
)

// Directory walks the direct children of one directory in key order. It
// keeps the last returned key as cursor, so entries created or removed while
// the directory is open are seen or skipped consistently.
type Directory struct {
	driver *Driver
	prefix string
	cursor string
}

func (dir *Directory) Open(p string) error {
	d := dir.driver
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, n, err := d.lookup(p)
	if err != nil {
		return err
	}
	if !n.mode.IsDir() {
		return data.ENOTDIR
	}

	dir.prefix = childPrefix(p)
	dir.cursor = ""
	return nil
}

func (dir *Directory) Read(entry *data.DirEntry) (bool, error) {
	d := dir.driver
	d.mu.RLock()
	defer d.mu.RUnlock()

	pivot := dir.prefix
	if dir.cursor != "" {
		pivot = dir.cursor
	}

	found := false
	d.paths.Ascend(pivot, func(key string, n *node) bool {
		if key == dir.cursor {
			return true
		}
		if !strings.HasPrefix(key, dir.prefix) {
			return false
		}
		rel := key[len(dir.prefix):]
		if rel == "" || strings.Contains(rel, "/") {
			return true
		}

		entry.Ino = n.ino()
		entry.Name = path.Base(key)
		entry.Mode = n.mode
		dir.cursor = key
		found = true
		return false
	})
	return found, nil
}

func (dir *Directory) Rewind() error {
	dir.cursor = ""
	return nil
}

func (dir *Directory) Close() error {
	dir.prefix = ""
	dir.cursor = ""
	return nil
}
