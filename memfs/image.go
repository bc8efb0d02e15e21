package memfs

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/tidwall/btree"
	"google.golang.org/protobuf/encoding/protowire"
)

// The image starts with a fixed header followed by one protobuf-encoded
// record per node:
//
//	header: magic[8] | payload length uint32 (big endian)
//	record: 1 path, 2 id, 3 mode, 4 content, 5 atime, 6 mtime, 7 ctime
//
// Records are framed as length-delimited field 1 of the payload.
var imageMagic = [8]byte{'P', 'I', 'O', 'M', 'E', 'M', 'F', '1'}

const headerSize = 12

const (
	fieldNode protowire.Number = 1

	fieldPath    protowire.Number = 1
	fieldID      protowire.Number = 2
	fieldMode    protowire.Number = 3
	fieldContent protowire.Number = 4
	fieldAtime   protowire.Number = 5
	fieldMtime   protowire.Number = 6
	fieldCtime   protowire.Number = 7
)

// Varints whose value changes after a node is created (mode, timestamps and
// the record length) are accounted at their widest encoding, so recordSize
// is an upper bound of what appendNode writes.
var (
	maxVarint32 = protowire.SizeVarint(math.MaxUint32)
	maxVarint64 = protowire.SizeVarint(math.MaxUint64)
)

// recordSize bounds the encoded size of the record for a node at p that
// holds size content bytes.
func recordSize(p string, size int) int64 {
	rec := protowire.SizeTag(fieldPath) + protowire.SizeBytes(len(p)) +
		protowire.SizeTag(fieldID) + protowire.SizeBytes(len(uuid.UUID{})) +
		protowire.SizeTag(fieldMode) + maxVarint32 +
		3*(protowire.SizeTag(fieldAtime)+maxVarint64)

	return int64(protowire.SizeTag(fieldNode)+maxVarint32+rec) + contentSize(size)
}

// contentSize is the encoded size of the content field, which is omitted
// for empty files.
func contentSize(size int) int64 {
	if size <= 0 {
		return 0
	}
	return int64(protowire.SizeTag(fieldContent) + protowire.SizeBytes(size))
}

// maxContent returns the longest content whose field fits into room bytes.
func maxContent(room int64) int {
	if room < contentSize(1) {
		return 0
	}

	size := int(room) - protowire.SizeTag(fieldContent) - protowire.SizeVarint(uint64(room))
	for contentSize(size+1) <= room {
		size++
	}
	for size > 0 && contentSize(size) > room {
		size--
	}
	return size
}

func appendNode(b []byte, p string, n *node) []byte {
	var rec []byte
	rec = protowire.AppendTag(rec, fieldPath, protowire.BytesType)
	rec = protowire.AppendString(rec, p)
	rec = protowire.AppendTag(rec, fieldID, protowire.BytesType)
	rec = protowire.AppendBytes(rec, n.id[:])
	rec = protowire.AppendTag(rec, fieldMode, protowire.VarintType)
	rec = protowire.AppendVarint(rec, uint64(n.mode))
	if len(n.data) > 0 {
		rec = protowire.AppendTag(rec, fieldContent, protowire.BytesType)
		rec = protowire.AppendBytes(rec, n.data)
	}
	for _, ts := range []struct {
		num protowire.Number
		t   time.Time
	}{{fieldAtime, n.atime}, {fieldMtime, n.mtime}, {fieldCtime, n.ctime}} {
		rec = protowire.AppendTag(rec, ts.num, protowire.VarintType)
		rec = protowire.AppendVarint(rec, protowire.EncodeZigZag(ts.t.UnixNano()))
	}

	b = protowire.AppendTag(b, fieldNode, protowire.BytesType)
	return protowire.AppendBytes(b, rec)
}

func consumeNode(rec []byte) (string, *node, error) {
	var p string
	n := &node{}

	for len(rec) > 0 {
		num, typ, l := protowire.ConsumeTag(rec)
		if l < 0 {
			return "", nil, protowire.ParseError(l)
		}
		rec = rec[l:]

		switch {
		case num == fieldPath && typ == protowire.BytesType:
			p, l = protowire.ConsumeString(rec)
		case num == fieldID && typ == protowire.BytesType:
			var raw []byte
			raw, l = protowire.ConsumeBytes(rec)
			if l >= 0 {
				id, err := uuid.FromBytes(raw)
				if err != nil {
					return "", nil, err
				}
				n.id = id
			}
		case num == fieldMode && typ == protowire.VarintType:
			var v uint64
			v, l = protowire.ConsumeVarint(rec)
			n.mode = data.FileMode(v)
		case num == fieldContent && typ == protowire.BytesType:
			var raw []byte
			raw, l = protowire.ConsumeBytes(rec)
			n.data = bytes.Clone(raw)
		case (num == fieldAtime || num == fieldMtime || num == fieldCtime) && typ == protowire.VarintType:
			var v uint64
			v, l = protowire.ConsumeVarint(rec)
			t := time.Unix(0, protowire.DecodeZigZag(v))
			switch num {
			case fieldAtime:
				n.atime = t
			case fieldMtime:
				n.mtime = t
			default:
				n.ctime = t
			}
		default:
			l = protowire.ConsumeFieldValue(num, typ, rec)
		}
		if l < 0 {
			return "", nil, protowire.ParseError(l)
		}
		rec = rec[l:]
	}

	if p == "" {
		return "", nil, data.EIO
	}
	return p, n, nil
}

func storeImage(bdev blockdev.BlockDevice, paths *btree.Map[string, *node]) error {
	payload := make([]byte, 0, 256)
	paths.Scan(func(p string, n *node) bool {
		payload = appendNode(payload, p, n)
		return true
	})

	bs := bdev.BlockSize()
	size := headerSize + len(payload)
	size = (size + bs - 1) / bs * bs
	if int64(size) > int64(bs)*bdev.NumBlocks() {
		return data.ENOSPC
	}

	image := make([]byte, size)
	copy(image, imageMagic[:])
	binary.BigEndian.PutUint32(image[8:headerSize], uint32(len(payload)))
	copy(image[headerSize:], payload)

	return bdev.WriteBlocks(0, image)
}

// loadImage returns a nil tree for a device that holds no image.
func loadImage(bdev blockdev.BlockDevice) (*btree.Map[string, *node], int64, error) {
	bs := bdev.BlockSize()
	if bs < headerSize {
		return nil, 0, data.EINVAL
	}

	first := make([]byte, bs)
	if err := bdev.ReadBlocks(0, first); err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(first[:8], imageMagic[:]) {
		return nil, 0, nil
	}

	length := int(binary.BigEndian.Uint32(first[8:headerSize]))
	size := (headerSize + length + bs - 1) / bs * bs
	if int64(size) > int64(bs)*bdev.NumBlocks() {
		return nil, 0, data.EIO
	}

	image := first
	if size > bs {
		image = make([]byte, size)
		if err := bdev.ReadBlocks(0, image); err != nil {
			return nil, 0, err
		}
	}
	payload := image[headerSize : headerSize+length]

	paths := btree.NewMap[string, *node](0)
	var used int64
	for len(payload) > 0 {
		num, typ, l := protowire.ConsumeTag(payload)
		if l < 0 {
			return nil, 0, protowire.ParseError(l)
		}
		payload = payload[l:]
		if num != fieldNode || typ != protowire.BytesType {
			return nil, 0, data.EIO
		}

		rec, l := protowire.ConsumeBytes(payload)
		if l < 0 {
			return nil, 0, protowire.ParseError(l)
		}
		payload = payload[l:]

		p, n, err := consumeNode(rec)
		if err != nil {
			return nil, 0, err
		}
		paths.Set(p, n)
		used += recordSize(p, len(n.data))
	}

	if _, ok := paths.Get("/"); !ok {
		return nil, 0, data.EIO
	}
	return paths, used, nil
}
