package data

import "strings"

// IsMountPrefix reports whether prefix can be mounted on: it must be
// absolute and end with a slash.
func IsMountPrefix(prefix string) bool {
	return len(prefix) > 0 && prefix[0] == '/' && prefix[len(prefix)-1] == '/'
}

// HasPrefix checks if path lies below the mount prefix.
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(path, prefix)
}

// ToRelativePath removes prefix from path but keeps its trailing slash, so
// the result is absolute within the mounted filesystem.
// path must satisfy HasPrefix.
func ToRelativePath(path, prefix string) string {
	return path[len(prefix)-1:]
}
