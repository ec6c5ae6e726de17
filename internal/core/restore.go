package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/fsutil"
)

// RestoreOutcome is what Restore did to the working copy
type RestoreOutcome int

const (
	OutcomeUnchanged    RestoreOutcome = iota // working copy already matches
	OutcomeDeclined                           // overwrite was not confirmed
	OutcomeRestored                           // stored copy written
	OutcomeWouldRestore                       // dry run, nothing written
)

func (o RestoreOutcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeDeclined:
		return "declined"
	case OutcomeRestored:
		return "restored"
	case OutcomeWouldRestore:
		return "would restore"
	default:
		return fmt.Sprintf("RestoreOutcome(%d)", int(o))
	}
}

// ConfirmFunc is asked before a differing working copy is overwritten
type ConfirmFunc func(path string, diff *DiffResult) (bool, error)

// RestoreOptions control Restore
type RestoreOptions struct {
	Force        bool // overwrite without asking
	DryRun       bool // report what would happen, write nothing
	Backup       bool // keep the current working copy as <path>.kitty-backup[.N]
	ContextLines int  // context for the diff handed to Confirm; negative selects DefaultContextLines
	Confirm      ConfirmFunc
}

// RestoreResult reports one Restore call
type RestoreResult struct {
	Path       string
	Outcome    RestoreOutcome
	BackupPath string      // written, or planned on a dry run
	Diff       *DiffResult // nil when the working copy is missing or unchanged
}

// Restore writes the stored copy of path back to the working copy.
func (r *Repo) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	if err := r.requireKey(); err != nil {
		return nil, err
	}

	abs, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	e, err := r.store.Lookup(ctx, abs)
	if err != nil {
		return nil, err
	}

	stored, err := r.decryptEntry(ctx, *e)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(stored)

	live, err := os.ReadFile(abs)
	liveExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, ioError("read "+abs, err)
	}

	res := &RestoreResult{Path: abs}
	if liveExists && bytes.Equal(live, stored) {
		res.Outcome = OutcomeUnchanged
		return res, nil
	}

	if liveExists {
		around := opts.ContextLines
		if around < 0 {
			around = DefaultContextLines
		}
		d := compareContent(abs, stored, live, DiffOptions{Context: true, ContextLines: around})
		res.Diff = &d
	}

	if liveExists && opts.Backup {
		if res.BackupPath, err = fsutil.NextFreeName(abs+BackupSuffix, MaxBackupCopies); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		res.Outcome = OutcomeWouldRestore
		return res, nil
	}

	if liveExists && !opts.Force {
		ok := false
		if opts.Confirm != nil {
			if ok, err = opts.Confirm(abs, res.Diff); err != nil {
				return nil, err
			}
		}
		if !ok {
			res.Outcome = OutcomeDeclined
			res.BackupPath = ""
			return res, nil
		}
	}

	mode, err := fsutil.FileMode(abs, fsutil.FilePermSecure)
	if err != nil {
		return nil, ioError("stat "+abs, err)
	}

	if res.BackupPath != "" {
		if err := fsutil.WriteFileAtomic(res.BackupPath, live, mode); err != nil {
			return nil, ioError("write backup "+res.BackupPath, err)
		}
		r.log.Info(ctx, "backup written", "path", res.BackupPath)
	}

	if err := fsutil.WriteFileAtomic(abs, stored, mode); err != nil {
		return nil, ioError("write "+abs, err)
	}

	res.Outcome = OutcomeRestored
	r.log.Info(ctx, "file restored", "path", abs, "backup", res.BackupPath)
	return res, nil
}
