package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/git"
	"github.com/illarion/kitty/internal/storage"
)

// DoctorReport describes repository consistency. No key is needed to
// produce it: checksums cover the ciphertext.
type DoctorReport struct {
	Mode           storage.Mode
	NeedsMigration bool // database schema predates in-row content
	Tracked        int
	Retained       int
	MissingBlobs   []string  // entries whose stored copy is gone
	Corrupt        []string  // entries whose stored copy fails its checksum
	MissingFiles   []string  // tracked paths with no working copy
	Orphans        []string  // stored blobs no entry references
	LegacyBlobs    int       // flat-file blobs left behind after migration
	IndexModified  time.Time // last change to the flat-file index; zero in database mode
	Git            *git.Status
}

// Healthy reports whether nothing needs attention
func (d *DoctorReport) Healthy() bool {
	return !d.NeedsMigration && len(d.MissingBlobs) == 0 && len(d.Corrupt) == 0 && len(d.Orphans) == 0
}

// Doctor checks that every entry has intact stored content and that no
// stored content is left unreferenced.
func (r *Repo) Doctor(ctx context.Context) (*DoctorReport, error) {
	report := &DoctorReport{Mode: r.mode}

	if rel, ok := r.backend.(*storage.Relational); ok {
		current, err := rel.SchemaCurrent(ctx)
		if err != nil {
			return nil, err
		}
		if !current {
			report.NeedsMigration = true
			return report, nil
		}
	}

	tracked, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	retained, err := r.store.Retained(ctx)
	if err != nil {
		return nil, err
	}
	report.Tracked, report.Retained = len(tracked), len(retained)

	if idx, ok := r.store.(*catalog.BoltStore); ok {
		if report.IndexModified, err = idx.Modified(); err != nil {
			return nil, err
		}
	}

	referenced := make(map[string]bool, len(tracked)+len(retained))
	check := func(e catalog.Entry) error {
		referenced[e.Locator] = true
		blob, err := r.backend.Get(ctx, e.Locator)
		if errors.Is(err, storage.ErrBlobNotFound) {
			report.MissingBlobs = append(report.MissingBlobs, e.Path)
			return nil
		}
		if err != nil {
			return err
		}
		if storage.Checksum(blob) != e.Checksum {
			report.Corrupt = append(report.Corrupt, e.Path)
		}
		return nil
	}

	paths := make([]string, 0, len(tracked))
	for _, e := range tracked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := check(e); err != nil {
			return nil, err
		}
		if _, err := os.Stat(e.Path); errors.Is(err, os.ErrNotExist) {
			report.MissingFiles = append(report.MissingFiles, e.Path)
		}
		paths = append(paths, e.Path)
	}
	for _, e := range retained {
		if err := check(e); err != nil {
			return nil, err
		}
	}

	locators, err := r.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, loc := range locators {
		if !referenced[loc] {
			report.Orphans = append(report.Orphans, loc)
		}
	}

	if r.mode == storage.ModeRelational {
		if report.LegacyBlobs, err = countFlatBlobs(ctx, r.dir); err != nil {
			return nil, err
		}
	}

	report.Git = git.Check(r.workDir, r.dir, paths)
	return report, nil
}

func countFlatBlobs(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(filepath.Join(dir, storage.BlobDir)); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	flat, err := storage.OpenFlatFile(dir)
	if err != nil {
		return 0, err
	}
	defer flat.Close()

	locators, err := flat.List(ctx)
	return len(locators), err
}
