package data

import "testing"

func TestPath_MountPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		valid  bool
	}{
		{"/", true},
		{"/data/", true},
		{"/a/b/", true},
		{"", false},
		{"/data", false},
		{"data/", false},
	}

	for _, tt := range tests {
		if got := IsMountPrefix(tt.prefix); got != tt.valid {
			t.Errorf("IsMountPrefix(%q) = %v, want %v", tt.prefix, got, tt.valid)
		}
	}
}

func TestPath_ToRelativePath(t *testing.T) {
	if !HasPrefix("/data/file.txt", "/data/") {
		t.Fatal("HasPrefix(/data/file.txt, /data/) must hold")
	}
	if HasPrefix("/database", "/data/") || HasPrefix("/x", "") {
		t.Error("HasPrefix matched a foreign path")
	}

	if got := ToRelativePath("/data/file.txt", "/data/"); got != "/file.txt" {
		t.Errorf("ToRelativePath = %q, want /file.txt", got)
	}
	if got := ToRelativePath("/data/", "/data/"); got != "/" {
		t.Errorf("ToRelativePath = %q, want /", got)
	}
}
