// Package filex contains filesystem helpers for the daemon's data files.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path (a database or
// log file). Paths without a directory component, and SQLite in-memory DSNs,
// are left alone.
func EnsureParentDir(path string) error {
	if path == "" || path == ":memory:" || filepath.Dir(path) == "." {
		return nil
	}
	return EnsureDir(filepath.Dir(path))
}

// EnsureDir creates dir and any missing parents with 0770 permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
