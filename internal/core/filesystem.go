package core

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// FileEntry is one regular file discovered by traversal, with the stat
// values used for the fast-skip decision.
type FileEntry struct {
	Path    string // Absolute path
	Size    int64
	ModTime time.Time
}

// FilesystemManager abstracts read-side filesystem access so stages can be
// tested against injected failures. The source tree is never mutated
// through this interface.
type FilesystemManager interface {
	// ResolveDir validates a raw path, returning its absolute form.
	// The path must exist and be a directory.
	ResolveDir(rawPath string) (string, error)

	// Walk enumerates regular files under root. Symlinks, devices and other
	// non-regular entries are excluded by policy. fn is called once per file;
	// returning an error aborts the walk. Unreadable directories and entries
	// are reported through errFn and skipped; only an unreadable root or a
	// callback error aborts the walk.
	Walk(ctx context.Context, root string, fn func(FileEntry) error, errFn func(path string, err error)) error

	// Open opens a file for streaming reads.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)
}
