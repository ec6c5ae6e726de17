package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/illarion/kitty/internal/dbx"
	"github.com/illarion/kitty/internal/storage"
)

// SQLStore keeps the index in the files table of the relational database.
// Entry locators are row ids, the same ones the relational backend returns.
type SQLStore struct {
	db dbx.DBTX
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps a database whose schema is current
func NewSQLStore(db dbx.DBTX) *SQLStore {
	return &SQLStore{db: db}
}

const selectEntry = `SELECT id, original_path, repo_path, hash, size, added_at, last_updated FROM files`

func formatTime(t time.Time) string {
	return t.UTC().Format(storage.TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		id             int64
		e              Entry
		added, updated string
	)
	if err := row.Scan(&id, &e.Path, &e.PathTag, &e.Checksum, &e.Size, &added, &updated); err != nil {
		return nil, err
	}
	e.Locator = storage.RowLocator(id)

	var err error
	if e.AddedAt, err = parseTime(added); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

// Track writes entry metadata onto the row named by e.Locator. The row is
// created by the relational backend's Put; Track revives it if it was
// retained.
func (s *SQLStore) Track(ctx context.Context, e Entry) error {
	id, err := storage.ParseRowLocator(e.Locator)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET original_path = ?, repo_path = COALESCE(NULLIF(?, ''), repo_path),
		 hash = ?, size = ?, added_at = ?, last_updated = ?, removed_at = NULL
		 WHERE id = ?`,
		e.Path, e.PathTag, e.Checksum, e.Size, formatTime(e.AddedAt), formatTime(e.UpdatedAt), id)
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("failed to store entry: row %s: %w", e.Locator, storage.ErrBlobNotFound)
	}
	return nil
}

// Lookup returns the tracked entry for path
func (s *SQLStore) Lookup(ctx context.Context, path string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectEntry+` WHERE original_path = ? AND removed_at IS NULL ORDER BY id LIMIT 1`, path)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}
	return e, nil
}

// Untrack deletes the row, or marks it removed with keepBlob
func (s *SQLStore) Untrack(ctx context.Context, path string, keepBlob bool) error {
	var (
		res sql.Result
		err error
	)
	if keepBlob {
		res, err = s.db.ExecContext(ctx,
			`UPDATE files SET removed_at = ? WHERE original_path = ? AND removed_at IS NULL`,
			formatTime(time.Now()), path)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM files WHERE original_path = ? AND removed_at IS NULL`, path)
	}
	if err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotTracked, path)
	}
	return nil
}

// Purge deletes every row for path, tracked or retained
func (s *SQLStore) Purge(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE original_path = ?`, path); err != nil {
		return fmt.Errorf("failed to purge entry: %w", err)
	}
	return nil
}

// Entries returns tracked rows ordered by path
func (s *SQLStore) Entries(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, selectEntry+` WHERE removed_at IS NULL ORDER BY original_path, id`)
}

// Retained returns rows removed with keepBlob
func (s *SQLStore) Retained(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, selectEntry+` WHERE removed_at IS NOT NULL ORDER BY original_path, id`)
}

func (s *SQLStore) query(ctx context.Context, q string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Close is a no-op; the database belongs to the relational backend
func (s *SQLStore) Close() error {
	return nil
}
