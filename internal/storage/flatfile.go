package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/illarion/kitty/internal/fsutil"
	"github.com/illarion/kitty/internal/security"
)

const tmpPrefix = ".tmp-"

// FlatFile keeps one file per blob under files/ in the repository directory.
type FlatFile struct {
	pv *security.PathValidator
}

var _ Backend = (*FlatFile)(nil)

// OpenFlatFile opens the flat-file backend rooted at repoDir, creating the
// blob directory when needed.
func OpenFlatFile(repoDir string) (*FlatFile, error) {
	pv, err := security.New(repoDir)
	if err != nil {
		return nil, err
	}
	if err := pv.MkdirAllInRoot(BlobDir, fsutil.DirPermSecure); err != nil {
		pv.Close()
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FlatFile{pv: pv}, nil
}

// BlobLocator returns the locator for a blob id. It is the only place
// flat-file locators are built.
func BlobLocator(id uuid.UUID) string {
	return BlobDir + "/" + id.String()
}

// ParseBlobLocator validates a flat-file locator and returns its id
func ParseBlobLocator(locator string) (uuid.UUID, error) {
	dir, name := path.Split(locator)
	if dir != BlobDir+"/" {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	id, err := uuid.Parse(name)
	if err != nil || id.String() != name {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return id, nil
}

// Put writes ciphertext to a fresh locator. The blob appears atomically.
func (f *FlatFile) Put(ctx context.Context, _ string, ciphertext []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	locator := BlobLocator(uuid.New())
	tmp := BlobDir + "/" + tmpPrefix + uuid.NewString()
	if err := f.pv.ReplaceFileInRoot(locator, tmp, ciphertext, fsutil.FilePermSecure); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return locator, nil
}

// Get reads the blob stored at locator
func (f *FlatFile) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseBlobLocator(locator); err != nil {
		return nil, err
	}

	data, err := f.pv.ReadFileInRoot(locator)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", locator, err)
	}
	return data, nil
}

// Delete removes the blob stored at locator
func (f *FlatFile) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseBlobLocator(locator); err != nil {
		return err
	}

	err := f.pv.RemoveInRoot(locator)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", locator, err)
	}
	return nil
}

// Exists reports whether a blob is stored at locator
func (f *FlatFile) Exists(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := ParseBlobLocator(locator); err != nil {
		return false, err
	}

	_, err := f.pv.StatInRoot(locator)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns the locators of all stored blobs. Leftover temp files from
// interrupted writes are not blobs and are skipped.
func (f *FlatFile) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := f.pv.ListDirInRoot(BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	locators := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		loc := BlobDir + "/" + name
		if _, err := ParseBlobLocator(loc); err != nil {
			continue
		}
		locators = append(locators, loc)
	}
	return locators, nil
}

// Close releases the root handle
func (f *FlatFile) Close() error {
	return f.pv.Close()
}
