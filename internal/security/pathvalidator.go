package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes repository")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator confines file operations to one directory using os.Root.
// Every stored locator passes through it, so a tampered index cannot make
// kitty read, write or delete anything outside the repository directory.
type PathValidator struct {
	root *os.Root
}

// New opens a PathValidator rooted at dir.
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository root: %w", err)
	}

	return &PathValidator{root: root}, nil
}

// Close releases the underlying root handle.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// ValidateAndNormalize checks a relative path and returns it in
// slash-separated form. Empty, absolute and escaping paths are rejected.
func (pv *PathValidator) ValidateAndNormalize(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}

	platformPath := filepath.FromSlash(p)
	if !filepath.IsLocal(platformPath) {
		if filepath.IsAbs(platformPath) || strings.HasPrefix(p, "/") {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, p)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, p)
	}

	return filepath.ToSlash(filepath.Clean(platformPath)), nil
}

func (pv *PathValidator) local(p string) (string, error) {
	clean, err := pv.ValidateAndNormalize(p)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return filepath.FromSlash(clean), nil
}

// ReplaceFileInRoot writes data to tmp and renames it over p, both inside
// the root. tmp must be unique to the caller.
func (pv *PathValidator) ReplaceFileInRoot(p, tmp string, data []byte, perm os.FileMode) error {
	lp, err := pv.local(p)
	if err != nil {
		return err
	}
	lt, err := pv.local(tmp)
	if err != nil {
		return err
	}

	f, err := pv.root.OpenFile(lt, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = pv.root.Remove(lt)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = pv.root.Remove(lt)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = pv.root.Remove(lt)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := pv.root.Rename(lt, lp); err != nil {
		_ = pv.root.Remove(lt)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// MkdirAllInRoot creates directories inside the root.
func (pv *PathValidator) MkdirAllInRoot(p string, perm os.FileMode) error {
	lp, err := pv.local(p)
	if err != nil {
		return err
	}
	return pv.root.MkdirAll(lp, perm)
}

// ReadFileInRoot reads a file inside the root.
func (pv *PathValidator) ReadFileInRoot(p string) ([]byte, error) {
	lp, err := pv.local(p)
	if err != nil {
		return nil, err
	}
	return pv.root.ReadFile(lp)
}

// StatInRoot stats a file inside the root.
func (pv *PathValidator) StatInRoot(p string) (os.FileInfo, error) {
	lp, err := pv.local(p)
	if err != nil {
		return nil, err
	}
	return pv.root.Stat(lp)
}

// RemoveInRoot removes a file inside the root.
func (pv *PathValidator) RemoveInRoot(p string) error {
	lp, err := pv.local(p)
	if err != nil {
		return err
	}
	return pv.root.Remove(lp)
}

// ListDirInRoot returns the sorted names of regular files in dir.
// A missing directory yields an empty list.
func (pv *PathValidator) ListDirInRoot(dir string) ([]string, error) {
	lp, err := pv.local(dir)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(pv.root.FS(), filepath.ToSlash(lp))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
