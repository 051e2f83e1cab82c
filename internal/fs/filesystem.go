package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mediasort/internal/core"
)

// OSFilesystemManager is the real filesystem implementation of
// core.FilesystemManager. The source tree is only ever read through it.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager with the given
// ignore patterns applied during traversal.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: NewIgnoreMatcher(ignorePatterns)}
}

// ResolveDir validates a raw path and returns its absolute form.
func (m *OSFilesystemManager) ResolveDir(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}
	return absPath, nil
}

// Walk enumerates regular files under root. Symlinks and other non-regular
// entries are excluded by policy. Unreadable directories are reported via
// errFn and their subtrees skipped, so one bad permission bit cannot abort
// a long traversal; an unreadable root is still fatal.
func (m *OSFilesystemManager) Walk(ctx context.Context, root string, fn func(core.FileEntry) error, errFn func(path string, err error)) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			errFn(p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("calculating relative path for %s: %w", p, err)
		}
		if m.ignore.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// File vanished between readdir and stat.
			errFn(p, err)
			return nil
		}
		return fn(core.FileEntry{
			Path:    p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Compile-time check that OSFilesystemManager implements core.FilesystemManager
var _ core.FilesystemManager = (*OSFilesystemManager)(nil)
