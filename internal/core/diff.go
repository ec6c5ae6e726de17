package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/crypto"
)

// DiffStatus classifies a tracked path against its stored copy
type DiffStatus int

const (
	StatusUnchanged DiffStatus = iota
	StatusChanged
	StatusMissing   // tracked but the working copy is gone
	StatusUntracked // requested path is not tracked
)

func (s DiffStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	case StatusMissing:
		return "missing"
	case StatusUntracked:
		return "untracked"
	default:
		return fmt.Sprintf("DiffStatus(%d)", int(s))
	}
}

// DiffOptions control Diff
type DiffOptions struct {
	Path         string // limit to one tracked path
	OnlyChanged  bool   // omit unchanged results
	Summary      bool   // count lines but do not keep them
	Context      bool   // keep unchanged lines around changes
	ContextLines int
}

// DiffResult is the comparison for one path
type DiffResult struct {
	Path      string
	Status    DiffStatus
	Binary    bool
	Additions int
	Deletions int
	Lines     []DiffLine
}

// DiffSummary aggregates a Diff run
type DiffSummary struct {
	Total     int
	Unchanged int
	Changed   int
	Missing   int
	Untracked int
	Failed    int
	Additions int
	Deletions int
}

// DiffReport is the outcome of Diff. Errors holds per-entry failures such
// as a missing blob; they do not stop the run.
type DiffReport struct {
	Results []DiffResult
	Summary DiffSummary
	Errors  []*EntryError
}

// HasChanges reports whether any path differs from its stored copy
func (d *DiffReport) HasChanges() bool {
	return d.Summary.Changed > 0 || d.Summary.Missing > 0
}

// Diff compares tracked files with their stored copies. A decryption
// failure aborts with ErrWrongPassword; other per-entry failures are
// collected in the report.
func (r *Repo) Diff(ctx context.Context, opts DiffOptions) (*DiffReport, error) {
	if err := r.requireKey(); err != nil {
		return nil, err
	}

	report := &DiffReport{}

	var entries []catalog.Entry
	if opts.Path != "" {
		abs, err := resolvePath(opts.Path)
		if err != nil {
			return nil, err
		}
		e, err := r.store.Lookup(ctx, abs)
		if errors.Is(err, catalog.ErrNotTracked) {
			report.Results = append(report.Results, DiffResult{Path: abs, Status: StatusUntracked})
			report.Summary.Total = 1
			report.Summary.Untracked = 1
			report.Errors = append(report.Errors, &EntryError{Path: abs, Err: err})
			return report, nil
		}
		if err != nil {
			return nil, err
		}
		entries = []catalog.Entry{*e}
	} else {
		var err error
		if entries, err = r.store.Entries(ctx); err != nil {
			return nil, err
		}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Summary.Total++

		res, err := r.diffEntry(ctx, e, opts)
		if errors.Is(err, ErrWrongPassword) {
			return nil, err
		}
		if err != nil {
			report.Summary.Failed++
			report.Errors = append(report.Errors, &EntryError{Path: e.Path, Err: err})
			r.log.Warn(ctx, "diff failed", "path", e.Path, "error", err)
			continue
		}

		switch res.Status {
		case StatusUnchanged:
			report.Summary.Unchanged++
		case StatusChanged:
			report.Summary.Changed++
		case StatusMissing:
			report.Summary.Missing++
		}
		report.Summary.Additions += res.Additions
		report.Summary.Deletions += res.Deletions

		if opts.OnlyChanged && res.Status == StatusUnchanged {
			continue
		}
		report.Results = append(report.Results, *res)
	}

	return report, nil
}

func (r *Repo) diffEntry(ctx context.Context, e catalog.Entry, opts DiffOptions) (*DiffResult, error) {
	live, err := os.ReadFile(e.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &DiffResult{Path: e.Path, Status: StatusMissing}, nil
	}
	if err != nil {
		return nil, ioError("read "+e.Path, err)
	}

	stored, err := r.decryptEntry(ctx, e)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(stored)

	res := compareContent(e.Path, stored, live, opts)
	return &res, nil
}

// compareContent builds the result for two readable copies
func compareContent(path string, stored, live []byte, opts DiffOptions) DiffResult {
	res := DiffResult{Path: path, Status: StatusUnchanged}
	if bytes.Equal(stored, live) {
		return res
	}
	res.Status = StatusChanged

	if !DetectFileType(stored) || !DetectFileType(live) {
		res.Binary = true
		return res
	}

	around := -1
	if opts.Context {
		around = max(opts.ContextLines, 0)
	}
	lines, additions, deletions := LineDiff(stored, live, around)
	res.Additions, res.Deletions = additions, deletions
	if !opts.Summary {
		res.Lines = lines
	}
	return res
}

// decryptEntry fetches and decrypts the stored copy of e
func (r *Repo) decryptEntry(ctx context.Context, e catalog.Entry) ([]byte, error) {
	blob, err := r.backend.Get(ctx, e.Locator)
	if err != nil {
		return nil, err
	}
	plaintext, err := r.cipher.Open(blob)
	if errors.Is(err, crypto.ErrAuthFailed) {
		return nil, fmt.Errorf("%w: cannot decrypt %s", ErrWrongPassword, e.Path)
	}
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}
