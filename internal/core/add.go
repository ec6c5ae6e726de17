package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/storage"
)

// Add encrypts the current contents of path and tracks it. Adding a
// tracked path replaces its stored copy and keeps its AddedAt.
func (r *Repo) Add(ctx context.Context, path string) (*catalog.Entry, error) {
	if err := r.requireKey(); err != nil {
		return nil, err
	}

	abs, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if insideDir(abs, r.dir) {
		return nil, fmt.Errorf("%w: %s", ErrInsideRepository, path)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return nil, ioError("stat "+path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ioError("read "+path, err)
	}
	blob, err := r.cipher.Seal(data)
	if err != nil {
		return nil, err
	}

	prev, err := r.store.Lookup(ctx, abs)
	if err != nil && !errors.Is(err, catalog.ErrNotTracked) {
		return nil, err
	}

	loc, err := r.backend.Put(ctx, abs, blob)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e := catalog.Entry{
		Path:      abs,
		Locator:   loc,
		Checksum:  storage.Checksum(blob),
		Size:      int64(len(data)),
		AddedAt:   now,
		UpdatedAt: now,
	}
	if prev != nil {
		e.AddedAt = prev.AddedAt
		e.PathTag = prev.PathTag
	}

	if err := r.store.Track(ctx, e); err != nil {
		if prev == nil || prev.Locator != loc {
			r.discardBlob(ctx, loc)
		}
		return nil, err
	}

	// the previous flat-file blob is unreferenced once the index points at the new one
	if prev != nil && prev.Locator != loc {
		r.discardBlob(ctx, prev.Locator)
	}

	r.log.Info(ctx, "file added", "path", abs, "size", e.Size, "replaced", prev != nil)
	return &e, nil
}

// discardBlob deletes a blob nothing references; failures leave an orphan for doctor
func (r *Repo) discardBlob(ctx context.Context, loc string) {
	if err := r.backend.Delete(ctx, loc); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
		r.log.Warn(ctx, "failed to delete unreferenced blob", "locator", loc, "error", err)
	}
}
