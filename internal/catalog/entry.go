package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotTracked = errors.New("file not tracked")

// Entry is one tracked file
type Entry struct {
	Path      string    `json:"path"`              // absolute, cleaned, symlinks resolved
	Locator   string    `json:"locator"`           // backend locator of the ciphertext
	PathTag   string    `json:"pathTag,omitempty"` // flat-file locator a relational row was filled from
	Checksum  string    `json:"checksum"`          // hex SHA-256 of the ciphertext
	Size      int64     `json:"size"`              // plaintext size at last add
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists tracked entries keyed by path.
type Store interface {
	// Track inserts or replaces the entry for e.Path.
	Track(ctx context.Context, e Entry) error

	// Lookup returns the entry for path or ErrNotTracked.
	Lookup(ctx context.Context, path string) (*Entry, error)

	// Untrack removes path from the tracked set. With keepBlob the entry is
	// retained (hidden from Lookup and Entries) so its ciphertext stays
	// accounted for.
	Untrack(ctx context.Context, path string, keepBlob bool) error

	// Entries returns all tracked entries sorted by path.
	Entries(ctx context.Context) ([]Entry, error)

	// Retained returns entries untracked with keepBlob.
	Retained(ctx context.Context) ([]Entry, error)

	Close() error
}
