package data

import "time"

// Stat is filled by fstat and stat. Callers own the value so no call has
// to allocate.
type Stat struct {
	Ino        uint64
	Mode       FileMode
	Nlink      uint32
	Size       int64
	BlockSize  int64
	Blocks     int64
	AccessTime time.Time
	ModifyTime time.Time
	ChangeTime time.Time
}

// Reset clears every field so a reused Stat never leaks a previous result.
func (s *Stat) Reset() {
	*s = Stat{}
}

// DirEntry is a single result of readdir.
type DirEntry struct {
	Ino  uint64
	Name string
	Mode FileMode
}

// Utimbuf carries the timestamps for utime. A nil *Utimbuf means "now".
type Utimbuf struct {
	AccessTime time.Time
	ModifyTime time.Time
}
