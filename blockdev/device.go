package blockdev

import (
	"io"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
)

// Ioctl requests understood by Device.
type (
	// GetBlockSize stores the block size in Size.
	GetBlockSize struct{ Size int }
	// GetBlockCount stores the number of blocks in Count.
	GetBlockCount struct{ Count int64 }
	// SyncCache flushes the underlying device.
	SyncCache struct{}
)

func (*GetBlockSize) IoctlName() string  { return "BLKSSZGET" }
func (*GetBlockCount) IoctlName() string { return "BLKGETSIZE" }
func (*SyncCache) IoctlName() string     { return "BLKFLSBUF" }

// Device exposes a BlockDevice under the device prefix as a byte addressed,
// seekable stream. Partial blocks are read-modify-written through a single
// block of scratch space allocated up front.
type Device struct {
	device.Base

	bdev    BlockDevice
	offset  int64
	scratch []byte
	flags   data.AccessMode
}

func NewDevice(name string, bdev BlockDevice) *Device {
	return &Device{
		Base:    device.NewBase(name),
		bdev:    bdev,
		scratch: make([]byte, bdev.BlockSize()),
	}
}

func (d *Device) size() int64 {
	return int64(d.bdev.BlockSize()) * d.bdev.NumBlocks()
}

func (d *Device) Open(_ string, opts data.OpenOptions) error {
	if err := d.bdev.Open(); err != nil {
		return err
	}
	d.offset = 0
	d.flags = opts.Flags
	return nil
}

func (d *Device) Close() error {
	if d.flags.CanWrite() {
		if err := d.bdev.Sync(); err != nil {
			d.bdev.Close()
			return err
		}
	}
	return d.bdev.Close()
}

func (d *Device) Read(p []byte) (int, error) {
	bs := int64(d.bdev.BlockSize())
	total := 0

	for total < len(p) && d.offset < d.size() {
		lba, within := d.offset/bs, d.offset%bs
		if err := d.bdev.ReadBlocks(lba, d.scratch); err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}

		n := copy(p[total:], d.scratch[within:])
		if rest := d.size() - d.offset; int64(n) > rest {
			n = int(rest)
		}
		total += n
		d.offset += int64(n)
	}
	return total, nil
}

func (d *Device) Write(p []byte) (int, error) {
	bs := int64(d.bdev.BlockSize())
	total := 0

	for total < len(p) {
		if d.offset >= d.size() {
			if total > 0 {
				return total, nil
			}
			return 0, data.ENOSPC
		}

		lba, within := d.offset/bs, d.offset%bs
		chunk := min(int64(len(p)-total), bs-within)
		if within != 0 || chunk < bs {
			if err := d.bdev.ReadBlocks(lba, d.scratch); err != nil {
				return total, err
			}
		}

		copy(d.scratch[within:], p[total:total+int(chunk)])
		if err := d.bdev.WriteBlocks(lba, d.scratch); err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}

		total += int(chunk)
		d.offset += chunk
	}
	return total, nil
}

func (d *Device) Lseek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = d.offset + offset
	case io.SeekEnd:
		next = d.size() + offset
	}
	if next < 0 {
		return 0, data.EINVAL
	}
	d.offset = next
	return next, nil
}

func (d *Device) Ftruncate(int64) error {
	return data.EINVAL
}

func (d *Device) Fsync() error {
	return d.bdev.Sync()
}

func (d *Device) Fstat(st *data.Stat) error {
	st.Mode = data.ModeDevice | 0660
	st.Size = d.size()
	st.BlockSize = int64(d.bdev.BlockSize())
	st.Blocks = d.bdev.NumBlocks()
	return nil
}

func (d *Device) Ioctl(req data.IoctlRequest) error {
	switch r := req.(type) {
	case *GetBlockSize:
		r.Size = d.bdev.BlockSize()
	case *GetBlockCount:
		r.Count = d.bdev.NumBlocks()
	case *SyncCache:
		return d.bdev.Sync()
	default:
		return data.ENOTTY
	}
	return nil
}
