package snapshot

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrPath is returned if a snapshot path leaves the export directory
var ErrPath = errors.New("path outside export directory")

// ResolvePath maps name onto a file below dir ("" is the working directory).
// Relative names are joined with dir, absolute names must already point below
// it. Names that climb out of dir are rejected with ErrPath.
func ResolvePath(dir, name string) (string, error) {
	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)

	if !filepath.IsAbs(name) {
		if !filepath.IsLocal(name) {
			return "", errors.Wrapf(ErrPath, "%s", name)
		}
		return filepath.Join(dir, name), nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(ErrIO, "%s: %v", dir, err)
	}
	rel, err := filepath.Rel(absDir, filepath.Clean(name))
	if err != nil || !filepath.IsLocal(rel) {
		return "", errors.Wrapf(ErrPath, "%s", name)
	}
	return filepath.Join(absDir, rel), nil
}

// WriteFile atomically replaces path with data: the bytes go to a temporary
// file in the same directory which is then renamed into place. A reader never
// observes a partially written document.
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".memkv-export-*")
	if err != nil {
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}

	// last chance to back out before the document becomes visible
	if err := ctx.Err(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	return nil
}

// ReadFile reads a snapshot document from path
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrIO, "%s: %v", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	return data, nil
}
