package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/kitty/internal/fsutil"
)

// Repository layout, relative to the repository directory
const (
	ModeFile     = "storage.type"
	BlobDir      = "files"
	DatabaseFile = "kitty.db"
)

var (
	ErrBlobNotFound         = errors.New("blob not found")
	ErrSchemaNeedsMigration = errors.New("database schema needs migration")
	ErrInvalidLocator       = errors.New("invalid blob locator")
	ErrUnknownMode          = errors.New("unknown storage mode")
)

// Backend stores opaque ciphertext blobs addressed by locators.
type Backend interface {
	// Put stores ciphertext and returns its locator. hint is the tracked
	// path; backends that key content by path use it, others ignore it.
	Put(ctx context.Context, hint string, ciphertext []byte) (string, error)

	// Get returns the blob for locator or ErrBlobNotFound.
	Get(ctx context.Context, locator string) ([]byte, error)

	// Delete removes the blob for locator or returns ErrBlobNotFound.
	Delete(ctx context.Context, locator string) error

	// Exists reports whether locator holds a blob.
	Exists(ctx context.Context, locator string) (bool, error)

	// List returns every locator that currently holds a blob.
	List(ctx context.Context) ([]string, error)

	Close() error
}

// Mode identifies which backend a repository uses
type Mode string

const (
	ModeFlatFile   Mode = "file"
	ModeRelational Mode = "sqlite"
)

// ParseMode parses the marker file contents
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeFlatFile, ModeRelational:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ReadMode reads the storage-mode marker in repoDir. A missing marker
// means flat-file storage.
func ReadMode(repoDir string) (Mode, error) {
	data, err := os.ReadFile(filepath.Join(repoDir, ModeFile))
	if errors.Is(err, os.ErrNotExist) {
		return ModeFlatFile, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read storage mode: %w", err)
	}
	return ParseMode(string(data))
}

// WriteMode atomically replaces the storage-mode marker in repoDir
func WriteMode(repoDir string, m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	path := filepath.Join(repoDir, ModeFile)
	if err := fsutil.WriteFileAtomic(path, []byte(m), fsutil.FilePermSecure); err != nil {
		return fmt.Errorf("failed to write storage mode: %w", err)
	}
	return nil
}
