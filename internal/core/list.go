package core

import (
	"context"

	"github.com/illarion/kitty/internal/catalog"
)

// List returns tracked entries matching opts, sorted by path
func (r *Repo) List(ctx context.Context, opts catalog.ListOptions) ([]catalog.Entry, error) {
	if err := r.requireCurrentSchema(ctx); err != nil {
		return nil, err
	}
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(entries, opts), nil
}

// Lookup returns the entry tracked for path
func (r *Repo) Lookup(ctx context.Context, path string) (*catalog.Entry, error) {
	if err := r.requireCurrentSchema(ctx); err != nil {
		return nil, err
	}
	abs, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	return r.store.Lookup(ctx, abs)
}
