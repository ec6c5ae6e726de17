package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/storage"
)

// RemoveOptions control Remove
type RemoveOptions struct {
	KeepContent bool // leave the ciphertext in storage
}

// Remove stops tracking path and, unless KeepContent is set, deletes its
// ciphertext. The working copy is never touched.
func (r *Repo) Remove(ctx context.Context, path string, opts RemoveOptions) (*catalog.Entry, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	e, err := r.store.Lookup(ctx, abs)
	if err != nil {
		return nil, err
	}

	if err := r.store.Untrack(ctx, abs, opts.KeepContent); err != nil {
		return nil, err
	}

	if !opts.KeepContent {
		err := r.backend.Delete(ctx, e.Locator)
		if err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			return e, fmt.Errorf("untracked %s but failed to delete its content: %w", abs, err)
		}
	}

	r.log.Info(ctx, "file removed", "path", abs, "keepContent", opts.KeepContent)
	return e, nil
}
