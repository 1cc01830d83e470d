// Package persist implements the crash-safe file persistence layer: atomic
// write-temp-then-rename updates, advisory lock files with bounded
// acquisition, content-fingerprint write skipping, time-gated backups, and an
// observable write-failure counter. It backs the control-state, ledger, and
// activity stores that the admission gate and cycle driver depend on.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path so that a concurrent reader observes
// either the previous content or the new content, never a partial blend. The
// payload is written to a temporary file in the same directory, flushed and
// synced to storage, then renamed over the target. When syncDir is true the
// containing directory is also synced for power-loss durability of the rename
// itself.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, syncDir bool) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	// Remove the temp file on any failure path; after a successful rename
	// the removal is a harmless no-op.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close temp for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("persist: chmod temp for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persist: rename %s: %w", path, err)
	}

	if syncDir {
		d, err := os.Open(dir)
		if err != nil {
			return fmt.Errorf("persist: open dir %s: %w", dir, err)
		}
		defer d.Close()
		if err := d.Sync(); err != nil {
			return fmt.Errorf("persist: sync dir %s: %w", dir, err)
		}
	}
	return nil
}
