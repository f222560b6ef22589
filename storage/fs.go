package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mhpenta/imageloop"
	"github.com/spf13/afero"
)

// FSStorage saves images under a base directory of an afero filesystem.
// Directory structure: <baseDir>/<continuation>/<image>.<ext>
type FSStorage struct {
	fs      afero.Fs
	baseDir string
}

// Ensure FSStorage implements imageloop.Storage.
var _ imageloop.Storage = (*FSStorage)(nil)

// NewFSStorage creates the base directory and returns a storage rooted there.
// A nil fs means the OS filesystem.
func NewFSStorage(fs afero.Fs, baseDir string) (*FSStorage, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if baseDir == "" {
		baseDir = "."
	}
	if err := fs.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &FSStorage{fs: fs, baseDir: baseDir}, nil
}

// SaveFile writes data to path below the base directory and returns the full
// file path.
func (s *FSStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return full, nil
}

// resolve joins path onto the base directory, refusing paths that escape it.
func (s *FSStorage) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(s.baseDir, clean), nil
}
