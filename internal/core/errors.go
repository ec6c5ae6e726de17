package core

import (
	"errors"
	"fmt"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/storage"
)

var (
	ErrNotInitialized   = errors.New("kitty repository not initialized")
	ErrAlreadyExists    = errors.New("kitty repository already exists")
	ErrWrongPassword    = errors.New("wrong password")
	ErrPasswordRequired = errors.New("password required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissing          = errors.New("file missing")
	ErrIO               = errors.New("i/o failure")
	ErrNotRegular       = errors.New("not a regular file")
	ErrInsideRepository = errors.New("path is inside the kitty directory")
	ErrNotMigrated      = errors.New("repository still uses flat-file storage")
	ErrIncomplete       = errors.New("relational storage is incomplete")

	// Re-exported so callers can match every kind from one package
	ErrNotTracked           = catalog.ErrNotTracked
	ErrBlobNotFound         = storage.ErrBlobNotFound
	ErrSchemaNeedsMigration = storage.ErrSchemaNeedsMigration
)

// EntryError records a failure for one tracked path during a batch operation
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ioError tags a filesystem or database failure with ErrIO
func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
