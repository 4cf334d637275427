package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Local is an afero-backed Backend.
type Local struct {
	fs afero.Fs
}

// NewLocal returns a Backend over the OS file system.
func NewLocal() *Local {
	return &Local{fs: afero.NewOsFs()}
}

// NewLocalFs returns a Backend over fs, e.g. afero.NewMemMapFs in tests.
func NewLocalFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

// Fs exposes the underlying file system.
func (l *Local) Fs() afero.Fs {
	return l.fs
}

// Ls implements Backend.
func (l *Local) Ls(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

// ReadFile implements Backend.
func (l *Local) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, p)
		}
		return nil, fmt.Errorf("failed to read %q: %w", p, err)
	}
	return data, nil
}

// WriteFile implements Backend by writing a sibling temp file and renaming it into place.
func (l *Local) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := path.Dir(p)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %q: %w", dir, err)
	}

	tmp := path.Join(dir, "."+path.Base(p)+"."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(l.fs, tmp, data, 0o644); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("failed to write %q: %w", tmp, err)
	}
	if err := l.fs.Rename(tmp, p); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("failed to move %q into place: %w", p, err)
	}
	return nil
}

// Exists implements Backend.
func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := l.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// MkdirAll implements Backend.
func (l *Local) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.fs.MkdirAll(dir, os.ModePerm)
}

// String implements Backend.
func (l *Local) String() string {
	return "local:" + l.fs.Name()
}
