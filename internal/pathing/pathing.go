// Package pathing resolves the data file paths written in query files.
package pathing

import (
	"path/filepath"
	"strings"
)

// Clean trims the surrounding whitespace of a declared path.
func Clean(path string) string {
	return strings.TrimSpace(path)
}

// IsAbsoluteLike reports whether path is absolute on any supported host:
// posix roots, windows drive letters and UNC shares.
func IsAbsoluteLike(path string) bool {
	path = Clean(path)
	switch {
	case path == "":
		return false
	case filepath.IsAbs(path):
		return true
	case strings.HasPrefix(path, "/"), strings.HasPrefix(path, `\\`):
		return true
	}
	return len(path) >= 3 && isASCIIAlpha(path[0]) && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

// Resolve joins a relative path to baseDir. Absolute-like paths and paths
// without a base directory are returned cleaned but otherwise untouched.
func Resolve(path, baseDir string) string {
	path = Clean(path)
	if path == "" || IsAbsoluteLike(path) || Clean(baseDir) == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResolveAll resolves paths in place against baseDir.
func ResolveAll(paths []string, baseDir string) {
	for i, p := range paths {
		paths[i] = Resolve(p, baseDir)
	}
}

func isASCIIAlpha(char byte) bool {
	return (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')
}
