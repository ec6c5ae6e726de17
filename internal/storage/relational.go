package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/illarion/kitty/internal/dbx"
	"github.com/illarion/kitty/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// TimeLayout is the timestamp format of the files and repository tables
const TimeLayout = time.RFC3339Nano

// Relational stores blobs in the content column of the files table.
// Locators are row ids in decimal.
type Relational struct {
	db   *sql.DB
	path string
}

var _ Backend = (*Relational)(nil)

// CreateRelational opens or creates the database at path and brings the
// schema up to date.
func CreateRelational(ctx context.Context, path string) (*Relational, error) {
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	r := &Relational{db: db, path: path}
	if err := r.Upgrade(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// OpenRelational opens an existing database without migrating it. When the
// schema predates in-database content, the handle is returned together with
// ErrSchemaNeedsMigration; only the migration path may continue with it.
func OpenRelational(ctx context.Context, path string) (*Relational, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	r := &Relational{db: db, path: path}

	current, err := r.SchemaCurrent(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !current {
		return r, ErrSchemaNeedsMigration
	}
	return r, nil
}

// RunMigrations applies all pending schema migrations to db
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Upgrade applies pending schema migrations
func (r *Relational) Upgrade(ctx context.Context) error {
	return RunMigrations(ctx, r.db)
}

// SchemaCurrent reports whether the files table can hold content
func (r *Relational) SchemaCurrent(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('files') WHERE name = 'content'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

// DB exposes the handle so the relational index can share the database
func (r *Relational) DB() *sql.DB {
	return r.db
}

// Path returns the database file path
func (r *Relational) Path() string {
	return r.path
}

// RowLocator formats a row id as a locator
func RowLocator(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseRowLocator parses a relational locator
func ParseRowLocator(locator string) (int64, error) {
	id, err := strconv.ParseInt(locator, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return id, nil
}

// Checksum returns the hex SHA-256 of a ciphertext blob
func Checksum(ciphertext []byte) string {
	sum := sha256.Sum256(ciphertext)
	return hex.EncodeToString(sum[:])
}

// Put stores ciphertext in the row for path hint, creating the row when the
// path has none. The upsert runs in one transaction.
func (r *Relational) Put(ctx context.Context, hint string, ciphertext []byte) (string, error) {
	if hint == "" {
		return "", errors.New("relational put requires the tracked path")
	}

	now := time.Now().UTC().Format(TimeLayout)
	hash := Checksum(ciphertext)

	var id int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM files WHERE original_path = ? ORDER BY id LIMIT 1`, hint).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO files (original_path, repo_path, added_at, last_updated, hash, content)
				 VALUES (?, '', ?, ?, ?, ?)`,
				hint, now, now, hash, ciphertext)
			if err != nil {
				return fmt.Errorf("failed to insert blob: %w", err)
			}
			id, err = res.LastInsertId()
			return err
		case err != nil:
			return fmt.Errorf("failed to look up row: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE files SET content = ?, hash = ?, last_updated = ? WHERE id = ?`,
			ciphertext, hash, now, id)
		if err != nil {
			return fmt.Errorf("failed to update blob: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return RowLocator(id), nil
}

// SetContent fills the existing row at locator with ciphertext. Used when
// upgrading databases whose content still lives in flat files.
func (r *Relational) SetContent(ctx context.Context, locator string, ciphertext []byte) error {
	id, err := ParseRowLocator(locator)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET content = ?, hash = ? WHERE id = ?`, ciphertext, Checksum(ciphertext), id)
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: row %s", ErrBlobNotFound, locator)
	}
	return nil
}

// Get returns the content of the row at locator
func (r *Relational) Get(ctx context.Context, locator string) ([]byte, error) {
	id, err := ParseRowLocator(locator)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = r.db.QueryRowContext(ctx, `SELECT content FROM files WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(content) == 0) {
		return nil, fmt.Errorf("%w: row %s", ErrBlobNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Delete clears the content of the row at locator. The row itself belongs
// to the index and is left in place.
func (r *Relational) Delete(ctx context.Context, locator string) error {
	id, err := ParseRowLocator(locator)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET content = NULL WHERE id = ? AND content IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: row %s", ErrBlobNotFound, locator)
	}
	return nil
}

// Exists reports whether the row at locator holds content
func (r *Relational) Exists(ctx context.Context, locator string) (bool, error) {
	n, err := r.ContentLength(ctx, locator)
	if errors.Is(err, ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ContentLength returns the stored content length of the row at locator,
// read back from the database.
func (r *Relational) ContentLength(ctx context.Context, locator string) (int64, error) {
	id, err := ParseRowLocator(locator)
	if err != nil {
		return 0, err
	}

	var n sql.NullInt64
	err = r.db.QueryRowContext(ctx, `SELECT length(content) FROM files WHERE id = ?`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: row %s", ErrBlobNotFound, locator)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read content length: %w", err)
	}
	return n.Int64, nil
}

// List returns the locators of rows holding content
func (r *Relational) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM files WHERE content IS NOT NULL AND length(content) > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var locators []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		locators = append(locators, RowLocator(id))
	}
	return locators, rows.Err()
}

// RecordRepository writes the repository row once. Later calls are no-ops.
func (r *Relational) RecordRepository(ctx context.Context, createdAt time.Time, salt string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO repository (id, created_at, salt) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		createdAt.UTC().Format(TimeLayout), salt)
	if err != nil {
		return fmt.Errorf("failed to record repository: %w", err)
	}
	return nil
}

// Compact rebuilds the database file to reclaim space
func (r *Relational) Compact(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("failed to compact database: %w", err)
	}
	return nil
}

// Close closes the database
func (r *Relational) Close() error {
	return r.db.Close()
}
