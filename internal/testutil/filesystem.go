package testutil

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"mediasort/internal/core"
)

// FailingOpenFS wraps a FilesystemManager and fails Open for selected
// paths, simulating files that vanish or lose permissions between stat
// and read.
type FailingOpenFS struct {
	Inner core.FilesystemManager
	Fail  map[string]bool
}

// NewFailingOpenFS wraps inner, failing Open for each of the given paths.
func NewFailingOpenFS(inner core.FilesystemManager, paths ...string) *FailingOpenFS {
	fail := make(map[string]bool, len(paths))
	for _, p := range paths {
		fail[p] = true
	}
	return &FailingOpenFS{Inner: inner, Fail: fail}
}

func (f *FailingOpenFS) ResolveDir(rawPath string) (string, error) {
	return f.Inner.ResolveDir(rawPath)
}

func (f *FailingOpenFS) Walk(ctx context.Context, root string, fn func(core.FileEntry) error, errFn func(path string, err error)) error {
	return f.Inner.Walk(ctx, root, fn, errFn)
}

func (f *FailingOpenFS) Open(path string) (io.ReadCloser, error) {
	if f.Fail[path] {
		return nil, fmt.Errorf("simulated read failure: %s", path)
	}
	return f.Inner.Open(path)
}

func (f *FailingOpenFS) Stat(path string) (fs.FileInfo, error) {
	return f.Inner.Stat(path)
}

// Compile-time check that FailingOpenFS implements core.FilesystemManager
var _ core.FilesystemManager = (*FailingOpenFS)(nil)

// WalkErrorFS wraps a FilesystemManager and reports one extra unreadable
// path during Walk, simulating a directory the walker cannot descend into.
type WalkErrorFS struct {
	Inner core.FilesystemManager
	Path  string
	Err   error
}

func (f *WalkErrorFS) ResolveDir(rawPath string) (string, error) {
	return f.Inner.ResolveDir(rawPath)
}

func (f *WalkErrorFS) Walk(ctx context.Context, root string, fn func(core.FileEntry) error, errFn func(path string, err error)) error {
	errFn(f.Path, f.Err)
	return f.Inner.Walk(ctx, root, fn, errFn)
}

func (f *WalkErrorFS) Open(path string) (io.ReadCloser, error) {
	return f.Inner.Open(path)
}

func (f *WalkErrorFS) Stat(path string) (fs.FileInfo, error) {
	return f.Inner.Stat(path)
}

// Compile-time check that WalkErrorFS implements core.FilesystemManager
var _ core.FilesystemManager = (*WalkErrorFS)(nil)
