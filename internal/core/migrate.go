package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/storage"
)

// MigrateOptions control Migrate
type MigrateOptions struct {
	// Progress is called after each entry with the running count
	Progress func(done, total int, path string)
}

// MigrateReport summarizes a Migrate run. A run with Failed == 0 leaves
// every entry readable from the relational database.
type MigrateReport struct {
	Total          int
	Migrated       int
	Skipped        int // already present in the database
	Failed         int
	Pruned         int // database rows for entries removed since an earlier run
	Errors         []*EntryError
	SchemaUpgraded bool // a database without in-row content was upgraded
	ModeChanged    bool // the storage marker now selects the database
}

// Migrate moves every stored copy into the relational database. It is
// resumable: entries already present are skipped, and the storage marker
// only changes once a run completes without failures. Flat-file blobs are
// never deleted here; see Cleanup.
func (r *Repo) Migrate(ctx context.Context, opts MigrateOptions) (*MigrateReport, error) {
	if err := r.requireKey(); err != nil {
		return nil, err
	}

	switch rel := r.backend.(type) {
	case *storage.Relational:
		return r.fillRelational(ctx, rel, opts)
	default:
		return r.migrateFlat(ctx, opts)
	}
}

func (r *Repo) migrateFlat(ctx context.Context, opts MigrateOptions) (*MigrateReport, error) {
	rel, err := storage.CreateRelational(ctx, filepath.Join(r.dir, storage.DatabaseFile))
	if err != nil {
		return nil, err
	}
	defer rel.Close()

	if err := rel.RecordRepository(ctx, r.cfg.CreatedAt, r.cfg.KDF.Salt); err != nil {
		return nil, err
	}
	dst := catalog.NewSQLStore(rel.DB())

	tracked, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	retained, err := r.store.Retained(ctx)
	if err != nil {
		return nil, err
	}
	report := &MigrateReport{Total: len(tracked) + len(retained)}
	if report.Pruned, err = r.pruneStale(ctx, dst, tracked, retained); err != nil {
		return nil, err
	}

	migratedRetained, err := dst.Retained(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]string, len(migratedRetained)) // path -> checksum
	for _, e := range migratedRetained {
		done[e.Path] = e.Checksum
	}

	step := func(e catalog.Entry, keep bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var skipped bool
		var err error
		if keep && done[e.Path] == e.Checksum {
			skipped = true
		} else {
			skipped, err = r.migrateEntry(ctx, rel, dst, e, keep)
		}
		r.tally(ctx, report, e.Path, skipped, err)
		if opts.Progress != nil {
			opts.Progress(report.Migrated+report.Skipped+report.Failed, report.Total, e.Path)
		}
		return nil
	}

	for _, e := range tracked {
		if err := step(e, false); err != nil {
			return report, err
		}
	}
	for _, e := range retained {
		if err := step(e, true); err != nil {
			return report, err
		}
	}

	if report.Failed == 0 {
		if err := storage.WriteMode(r.dir, storage.ModeRelational); err != nil {
			return report, err
		}
		report.ModeChanged = true
		r.log.Info(ctx, "storage switched to database", "entries", report.Total)
	}
	return report, nil
}

// pruneStale brings rows left by an earlier, failed run in line with the
// flat-file index: rows for paths removed since are deleted, and rows for
// paths removed with keep-content are marked retained.
func (r *Repo) pruneStale(ctx context.Context, dst *catalog.SQLStore, tracked, retained []catalog.Entry) (int, error) {
	inTracked := make(map[string]bool, len(tracked))
	for _, e := range tracked {
		inTracked[e.Path] = true
	}
	inRetained := make(map[string]bool, len(retained))
	for _, e := range retained {
		inRetained[e.Path] = true
	}

	rows, err := dst.Entries(ctx)
	if err != nil {
		return 0, err
	}
	old, err := dst.Retained(ctx)
	if err != nil {
		return 0, err
	}

	var pruned int
	for _, e := range rows {
		switch {
		case inTracked[e.Path]:
			continue
		case inRetained[e.Path]:
			err = dst.Untrack(ctx, e.Path, true)
		default:
			err = dst.Purge(ctx, e.Path)
			pruned++
		}
		if err != nil {
			return pruned, err
		}
	}
	for _, e := range old {
		if inTracked[e.Path] || inRetained[e.Path] {
			continue
		}
		if err := dst.Purge(ctx, e.Path); err != nil {
			return pruned, err
		}
		pruned++
	}

	if pruned > 0 {
		r.log.Info(ctx, "dropped rows for removed entries", "count", pruned)
	}
	return pruned, nil
}

// migrateEntry copies one flat-file blob into the database verbatim
func (r *Repo) migrateEntry(ctx context.Context, rel *storage.Relational, dst *catalog.SQLStore, e catalog.Entry, keep bool) (bool, error) {
	existing, err := dst.Lookup(ctx, e.Path)
	switch {
	case err == nil && existing.Checksum == e.Checksum:
		ok, err := rel.Exists(ctx, existing.Locator)
		if err != nil {
			return false, err
		}
		if ok && !keep {
			return true, nil
		}
		if ok {
			// interrupted between tracking and retaining
			return false, dst.Untrack(ctx, e.Path, true)
		}
	case err != nil && !errors.Is(err, catalog.ErrNotTracked):
		return false, err
	}

	blob, err := r.backend.Get(ctx, e.Locator)
	if err != nil {
		return false, err
	}
	plaintext, err := r.cipher.Open(blob)
	if err != nil {
		return false, fmt.Errorf("stored copy does not authenticate: %w", err)
	}
	crypto.ClearBytes(plaintext)

	loc, err := rel.Put(ctx, e.Path, blob)
	if err != nil {
		return false, err
	}
	moved := e
	moved.Locator = loc
	moved.PathTag = e.Locator
	if err := dst.Track(ctx, moved); err != nil {
		return false, err
	}
	if keep {
		if err := dst.Untrack(ctx, e.Path, true); err != nil {
			return false, err
		}
	}

	return false, verifyContent(ctx, rel, loc, blob)
}

// fillRelational upgrades a database whose rows reference flat-file
// content and copies that content into the rows.
func (r *Repo) fillRelational(ctx context.Context, rel *storage.Relational, opts MigrateOptions) (*MigrateReport, error) {
	report := &MigrateReport{}

	current, err := rel.SchemaCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if !current {
		if err := rel.Upgrade(ctx); err != nil {
			return nil, err
		}
		report.SchemaUpgraded = true
		r.log.Info(ctx, "database schema upgraded", "path", rel.Path())
	}

	tracked, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	retained, err := r.store.Retained(ctx)
	if err != nil {
		return nil, err
	}
	entries := append(tracked, retained...)
	report.Total = len(entries)

	var flat *storage.FlatFile
	defer func() {
		if flat != nil {
			flat.Close()
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ok, err := rel.Exists(ctx, e.Locator)
		if err == nil && !ok {
			if flat == nil {
				flat, err = storage.OpenFlatFile(r.dir)
			}
			if err == nil {
				err = r.fillEntry(ctx, rel, flat, e)
			}
		}
		r.tally(ctx, report, e.Path, ok, err)
		if opts.Progress != nil {
			opts.Progress(report.Migrated+report.Skipped+report.Failed, report.Total, e.Path)
		}
	}
	return report, nil
}

func (r *Repo) fillEntry(ctx context.Context, rel *storage.Relational, flat *storage.FlatFile, e catalog.Entry) error {
	if e.PathTag == "" {
		return fmt.Errorf("%w: row has no content and no flat-file copy", ErrIncomplete)
	}
	blob, err := flat.Get(ctx, e.PathTag)
	if err != nil {
		return err
	}
	plaintext, err := r.cipher.Open(blob)
	if err != nil {
		return fmt.Errorf("stored copy does not authenticate: %w", err)
	}
	crypto.ClearBytes(plaintext)

	if err := rel.SetContent(ctx, e.Locator, blob); err != nil {
		return err
	}
	return verifyContent(ctx, rel, e.Locator, blob)
}

// verifyContent reads back the stored length of a freshly written row
func verifyContent(ctx context.Context, rel *storage.Relational, loc string, blob []byte) error {
	n, err := rel.ContentLength(ctx, loc)
	if err != nil {
		return err
	}
	if n != int64(len(blob)) {
		return fmt.Errorf("%w: row %s holds %d of %d bytes", ErrIncomplete, loc, n, len(blob))
	}
	return nil
}

func (r *Repo) tally(ctx context.Context, report *MigrateReport, path string, skipped bool, err error) {
	switch {
	case err != nil:
		report.Failed++
		report.Errors = append(report.Errors, &EntryError{Path: path, Err: err})
		r.log.Warn(ctx, "migration failed", "path", path, "error", err)
	case skipped:
		report.Skipped++
		r.log.Debug(ctx, "already migrated", "path", path)
	default:
		report.Migrated++
		r.log.Debug(ctx, "migrated", "path", path)
	}
}

// CleanupReport summarizes Cleanup
type CleanupReport struct {
	BlobsRemoved int
	IndexRemoved bool
}

// Cleanup deletes flat-file copies that a completed migration made
// redundant, together with the old index. It refuses to run unless the
// database holds content for every entry.
func (r *Repo) Cleanup(ctx context.Context) (*CleanupReport, error) {
	rel, ok := r.backend.(*storage.Relational)
	if !ok {
		return nil, ErrNotMigrated
	}
	if err := r.requireCurrentSchema(ctx); err != nil {
		return nil, err
	}

	tracked, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	retained, err := r.store.Retained(ctx)
	if err != nil {
		return nil, err
	}
	entries := append(tracked, retained...)

	for _, e := range entries {
		ok, err := rel.Exists(ctx, e.Locator)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s has no content, run migrate first", ErrIncomplete, e.Path)
		}
	}

	report := &CleanupReport{}

	blobDir := filepath.Join(r.dir, storage.BlobDir)
	if _, err := os.Stat(blobDir); err == nil {
		flat, err := storage.OpenFlatFile(r.dir)
		if err != nil {
			return nil, err
		}
		defer flat.Close()

		for _, e := range entries {
			if e.PathTag == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			err := flat.Delete(ctx, e.PathTag)
			switch {
			case err == nil:
				report.BlobsRemoved++
			case errors.Is(err, storage.ErrBlobNotFound), errors.Is(err, storage.ErrInvalidLocator):
			default:
				return report, err
			}
		}
		// only succeeds once nothing else is left in it
		_ = os.Remove(blobDir)
	}

	err = os.Remove(filepath.Join(r.dir, catalog.IndexFile))
	switch {
	case err == nil:
		report.IndexRemoved = true
	case !errors.Is(err, os.ErrNotExist):
		return report, ioError("remove index", err)
	}

	r.log.Info(ctx, "flat-file copies removed", "blobs", report.BlobsRemoved, "index", report.IndexRemoved)
	return report, nil
}
