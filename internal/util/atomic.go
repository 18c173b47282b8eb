// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for maestro.
package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile replaces the file at path with data without ever exposing
// a partially written file. The data is staged in a temp file beside the
// target, fsynced, chmodded, then renamed into place; readers observe either
// the previous content or the complete new content, crash included.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	// The stage file and the target must share a directory; rename is only
	// atomic within one filesystem.
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("staging write: %w", err)
	}
	stagePath := f.Name()

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(stagePath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing stage file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing stage file: %w", err)
	}
	// Windows refuses to rename an open file.
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing stage file: %w", err)
	}

	if err := os.Chmod(stagePath, perm); err != nil {
		os.Remove(stagePath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(stagePath, absPath); err != nil {
		os.Remove(stagePath)
		return fmt.Errorf("committing %s: %w", path, err)
	}

	committed = true
	return nil
}
