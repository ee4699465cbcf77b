// Package fsutil holds the small filesystem primitives shared by the mailbox
// and the dispatch table: atomic publication through temp file + rename.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/afero"
)

const tempMarker = ".tmp-"

// TempName returns a hidden sibling path for path with a random suffix.
func TempName(path string) string {
	suffix, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 10)
	if err != nil {
		suffix = fmt.Sprintf("%d", os.Getpid())
	}
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+tempMarker+suffix)
}

// IsTemp reports whether name (a path or base name) was produced by TempName.
func IsTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.Contains(base, tempMarker)
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path. Readers observe either the previous content or the full new content.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := TempName(path)
	f, err := fs.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		fs.Remove(tempFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fs.Remove(tempFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := fs.Rename(tempFile, path); err != nil {
		fs.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
