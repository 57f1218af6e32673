// Package gcodes provides access to the gcode file repository on disk.
// The task lifecycle manager only ever asks whether a file exists; the
// files themselves are read by the printer host.
package gcodes

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Repository checks filenames against a root directory of gcode files.
type Repository struct {
	fs   afero.Fs
	root string
}

// NewRepository creates a Repository over the operating system
// filesystem rooted at dir.
func NewRepository(dir string) *Repository {
	return NewRepositoryWithFs(afero.NewOsFs(), dir)
}

// NewRepositoryWithFs creates a Repository over an arbitrary
// filesystem. Used by tests to substitute an in-memory filesystem.
func NewRepositoryWithFs(fs afero.Fs, dir string) *Repository {
	return &Repository{fs: fs, root: dir}
}

// FileExists reports whether the named file exists in the repository.
// Filenames are relative to the repository root; paths that escape the
// root are rejected.
func (r *Repository) FileExists(ctx context.Context, filename string) (bool, error) {
	if filename == "" {
		return false, nil
	}

	clean := filepath.Clean(filename)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return false, nil
	}

	exists, err := afero.Exists(r.fs, filepath.Join(r.root, clean))
	if err != nil {
		return false, fmt.Errorf("failed to stat gcode file %q: %w", filename, err)
	}

	return exists, nil
}
