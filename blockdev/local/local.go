// Package local keeps a block device in an image file on the host
// filesystem. The file is created on first open and sized to the device
// geometry; an existing image of another size is rejected.
package local

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
)

type BlockDevice struct {
	mu   sync.RWMutex
	file *os.File

	name      string
	path      string
	blockSize int
	numBlocks int64
}

var _ blockdev.BlockDevice = (*BlockDevice)(nil)

func New(name, path string, blockSize int, numBlocks int64) *BlockDevice {
	return &BlockDevice{
		name:      name,
		path:      filepath.Clean(path),
		blockSize: blockSize,
		numBlocks: numBlocks,
	}
}

// errnoOf maps host filesystem errors to error codes.
func errnoOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return data.ENOENT
	case errors.Is(err, fs.ErrPermission):
		return data.EROFS
	default:
		return data.EIO
	}
}

func (bd *BlockDevice) Name() string {
	return bd.name
}

func (bd *BlockDevice) Path() string {
	return bd.path
}

func (bd *BlockDevice) size() int64 {
	return int64(bd.blockSize) * bd.numBlocks
}

func (bd *BlockDevice) Open() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if bd.file != nil {
		return nil
	}
	if bd.blockSize <= 0 || bd.numBlocks <= 0 {
		return data.EINVAL
	}

	file, err := os.OpenFile(bd.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errnoOf(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return errnoOf(err)
	}
	switch {
	case info.IsDir():
		file.Close()
		return data.EISDIR
	case info.Size() == 0:
		if err := file.Truncate(bd.size()); err != nil {
			file.Close()
			return errnoOf(err)
		}
	case info.Size() != bd.size():
		file.Close()
		return data.EINVAL
	}

	bd.file = file
	return nil
}

func (bd *BlockDevice) Close() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if bd.file == nil {
		return nil
	}

	err := bd.file.Close()
	bd.file = nil
	return errnoOf(err)
}

func (bd *BlockDevice) ReadBlocks(lba int64, p []byte) error {
	bd.mu.RLock()
	defer bd.mu.RUnlock()

	if bd.file == nil {
		return data.EBADF
	}
	if err := blockdev.CheckRange(lba, p, bd.blockSize, bd.numBlocks); err != nil {
		return err
	}

	_, err := bd.file.ReadAt(p, lba*int64(bd.blockSize))
	return errnoOf(err)
}

func (bd *BlockDevice) WriteBlocks(lba int64, p []byte) error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if bd.file == nil {
		return data.EBADF
	}
	if err := blockdev.CheckRange(lba, p, bd.blockSize, bd.numBlocks); err != nil {
		return err
	}

	_, err := bd.file.WriteAt(p, lba*int64(bd.blockSize))
	return errnoOf(err)
}

// Sync flushes the image file to stable storage.
func (bd *BlockDevice) Sync() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if bd.file == nil {
		return data.EBADF
	}
	return errnoOf(bd.file.Sync())
}

func (bd *BlockDevice) BlockSize() int {
	return bd.blockSize
}

func (bd *BlockDevice) NumBlocks() int64 {
	return bd.numBlocks
}
