package fs

import "github.com/mwantia/pio/data"

// Directory is an open directory stream. Directories are not given a
// descriptor; callers keep the *Directory returned by Opendir.
type Directory struct {
	fs    *FileSystem
	ops   DirectoryOps
	entry data.DirEntry
	open  bool
}

func (d *Directory) FileSystem() *FileSystem {
	return d.fs
}

func (d *Directory) IsOpen() bool {
	return d.open
}

// Read returns the next entry, or nil at the end of the directory. The
// returned entry is overwritten by the next call.
func (d *Directory) Read() (*data.DirEntry, error) {
	if !d.open {
		return nil, data.EBADF
	}

	d.entry = data.DirEntry{}
	ok, err := d.ops.Read(&d.entry)
	if err != nil || !ok {
		return nil, err
	}
	return &d.entry, nil
}

func (d *Directory) Rewind() error {
	if !d.open {
		return data.EBADF
	}
	return d.ops.Rewind()
}

// Close runs the close hook and returns the directory to its pool.
func (d *Directory) Close() error {
	if !d.open {
		return data.EBADF
	}

	err := d.ops.Close()
	d.open = false
	d.entry = data.DirEntry{}
	d.fs.dirs.Release(d)
	return err
}
