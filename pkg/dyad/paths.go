package dyad

import (
	"os"
	"path/filepath"
	"strings"
)

// canonicalize resolves a path to an absolute, symlink-free form as far as
// the filesystem allows. Paths that do not exist yet (a consumer's output
// file before its first fetch) resolve their parent directory instead.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
		return filepath.Join(resolved, base)
	}
	return abs
}

// underManagedPrefix reports whether path falls under the managed prefix and
// returns the user path: the remainder relative to the prefix, the identifier
// shared across ranks.
func underManagedPrefix(prefix, path string) (string, bool) {
	if prefix == "" {
		return "", false
	}

	canonPrefix := canonicalize(prefix)
	canonPath := canonicalize(path)

	rel, err := filepath.Rel(canonPrefix, canonPath)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// isPathDir reports whether name exists and is a directory.
func isPathDir(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && fi.IsDir()
}

// isFileDir reports whether the open file refers to a directory.
func isFileDir(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.IsDir()
}
