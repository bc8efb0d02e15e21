// Package blockdev defines the block device contract filesystems are mounted
// on, a RAM implementation and a /dev adapter for raw access.
package blockdev

import (
	"sync"

	"github.com/mwantia/pio/data"
)

// BlockDevice transfers whole blocks. Buffers passed to ReadBlocks and
// WriteBlocks must be a multiple of BlockSize.
type BlockDevice interface {
	Name() string
	Open() error
	Close() error
	ReadBlocks(lba int64, p []byte) error
	WriteBlocks(lba int64, p []byte) error
	Sync() error
	BlockSize() int
	NumBlocks() int64
}

// CheckRange validates a transfer of p starting at lba on a device with the
// given geometry.
func CheckRange(lba int64, p []byte, blockSize int, numBlocks int64) error {
	if p == nil {
		return data.EFAULT
	}
	if len(p)%blockSize != 0 || lba < 0 {
		return data.EINVAL
	}
	if lba+int64(len(p)/blockSize) > numBlocks {
		return data.ENOSPC
	}
	return nil
}

// RAM keeps its blocks in memory. Content survives Close and Open.
type RAM struct {
	mu sync.RWMutex

	name      string
	blockSize int
	blocks    []byte
	opened    bool
	syncs     int
}

func NewRAM(name string, blockSize int, numBlocks int64) *RAM {
	return &RAM{
		name:      name,
		blockSize: blockSize,
		blocks:    make([]byte, int64(blockSize)*numBlocks),
	}
}

func (r *RAM) Name() string {
	return r.name
}

func (r *RAM) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = true
	return nil
}

func (r *RAM) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = false
	return nil
}

func (r *RAM) ReadBlocks(lba int64, p []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.opened {
		return data.EBADF
	}
	if err := CheckRange(lba, p, r.blockSize, r.NumBlocks()); err != nil {
		return err
	}

	copy(p, r.blocks[lba*int64(r.blockSize):])
	return nil
}

func (r *RAM) WriteBlocks(lba int64, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return data.EBADF
	}
	if err := CheckRange(lba, p, r.blockSize, r.NumBlocks()); err != nil {
		return err
	}

	copy(r.blocks[lba*int64(r.blockSize):], p)
	return nil
}

func (r *RAM) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.syncs++
	return nil
}

// Syncs returns how often Sync was called.
func (r *RAM) Syncs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.syncs
}

func (r *RAM) BlockSize() int {
	return r.blockSize
}

func (r *RAM) NumBlocks() int64 {
	return int64(len(r.blocks) / r.blockSize)
}
