package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/storage"
)

// CompactResult reports file sizes around a Compact call
type CompactResult struct {
	Path   string
	Before int64
	After  int64
}

// Compact reclaims free space in the index or database file
func (r *Repo) Compact(ctx context.Context) (*CompactResult, error) {
	var (
		path string
		run  func() error
	)
	switch {
	case r.mode == storage.ModeRelational:
		rel := r.backend.(*storage.Relational)
		path = rel.Path()
		run = func() error { return rel.Compact(ctx) }
	default:
		bs := r.store.(*catalog.BoltStore)
		path = bs.Path()
		run = bs.Compact
	}

	res := &CompactResult{Path: path, Before: fileSize(path)}
	if err := run(); err != nil {
		return nil, err
	}
	res.After = fileSize(path)

	r.log.Info(ctx, "compacted", "path", filepath.Base(path), "before", res.Before, "after", res.After)
	return res, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
