package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Local is a Storage over the local filesystem.
type Local struct{}

// NewLocal creates a local filesystem handle.
func NewLocal() *Local {
	return &Local{}
}

// Exists reports whether uri is a file or a non-empty directory.
func (l *Local) Exists(_ context.Context, uri string) (bool, error) {
	path := Normalize(uri)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &core.IOError{Op: "stat", Path: path, Err: err}
	}
	if !info.IsDir() {
		return true, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, &core.IOError{Op: "read dir", Path: path, Err: err}
	}
	return len(entries) > 0, nil
}

// List returns every regular file below uri.
func (l *Local) List(_ context.Context, uri string) ([]string, error) {
	root := Normalize(uri)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.IOError{Op: "list", Path: root, Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// Match expands a glob pattern into matching regular files.
func (l *Local) Match(_ context.Context, pattern string) ([]string, error) {
	pattern = Normalize(pattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &core.IOError{Op: "glob", Path: pattern, Err: err}
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Remove deletes uri and everything below it.
func (l *Local) Remove(_ context.Context, uri string) error {
	path := Normalize(uri)
	if err := os.RemoveAll(path); err != nil {
		return &core.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Prepare creates the directory uri (and its parents) so the engine can
// write partitions into it.
func (l *Local) Prepare(_ context.Context, uri string) error {
	path := Normalize(uri)
	if err := os.MkdirAll(path, 0o750); err != nil {
		return &core.IOError{Op: "mkdir", Path: path, Err: fmt.Errorf("prepare output: %w", err)}
	}
	return nil
}

func joinLocal(base string, elem ...string) string {
	return filepath.Join(append([]string{Normalize(base)}, elem...)...)
}

var _ Storage = (*Local)(nil)
