package local

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/pio/data"
)

func TestLocal_ReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	bd := New("disk0", path, 64, 8)

	if err := bd.ReadBlocks(0, make([]byte, 64)); !errors.Is(err, data.EBADF) {
		t.Errorf("ReadBlocks before Open: expected EBADF, got %v", err)
	}

	if err := bd.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 512 {
		t.Errorf("Image size = %d, want 512", info.Size())
	}

	block := bytes.Repeat([]byte{0xab}, 128)
	if err := bd.WriteBlocks(6, block); err != nil {
		t.Fatalf("WriteBlocks failed: %v", err)
	}
	if err := bd.WriteBlocks(7, block); !errors.Is(err, data.ENOSPC) {
		t.Errorf("WriteBlocks past the end: expected ENOSPC, got %v", err)
	}
	if err := bd.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := bd.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := New("disk0", path, 64, 8)
	if err := reopened.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got := make([]byte, 192)
	if err := reopened.ReadBlocks(5, got); err != nil {
		t.Fatalf("ReadBlocks failed: %v", err)
	}
	if !bytes.Equal(got[:64], make([]byte, 64)) || !bytes.Equal(got[64:], block) {
		t.Errorf("Unexpected content after reopen: %x", got)
	}
}

func TestLocal_GeometryMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := New("disk0", path, 64, 8).Open(); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL for a foreign image, got %v", err)
	}
	if err := New("disk0", t.TempDir(), 64, 8).Open(); err == nil {
		t.Error("Opening a directory must fail")
	}
}
