package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/illarion/kitty/internal/storage"
)

func TestRestore_Scenario(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)
			ctx := context.Background()
			file := filepath.Join(dir, "A")

			writeFile(t, file, "v1")
			mustAdd(t, r, file)
			writeFile(t, file, "v2")

			report, err := r.Diff(ctx, DiffOptions{Path: file})
			if err != nil {
				t.Fatalf("Diff failed: %v", err)
			}
			if report.Results[0].Status != StatusChanged {
				t.Fatalf("status = %s, want changed", report.Results[0].Status)
			}

			asked := false
			res, err := r.Restore(ctx, file, RestoreOptions{
				Confirm: func(path string, d *DiffResult) (bool, error) {
					asked = true
					if path != file || d == nil || d.Status != StatusChanged {
						t.Errorf("unexpected confirm call: %s %+v", path, d)
					}
					return true, nil
				},
			})
			if err != nil {
				t.Fatalf("Restore failed: %v", err)
			}
			if !asked {
				t.Error("Confirm should be called for a differing file")
			}
			if res.Outcome != OutcomeRestored {
				t.Errorf("outcome = %s, want restored", res.Outcome)
			}
			if got := readFile(t, file); got != "v1" {
				t.Errorf("content = %q, want v1", got)
			}

			report, err = r.Diff(ctx, DiffOptions{})
			if err != nil {
				t.Fatalf("Diff failed: %v", err)
			}
			if report.HasChanges() {
				t.Errorf("expected no changes after restore: %+v", report.Summary)
			}
		})
	}
}

func TestRestore_Declined(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	file := filepath.Join(dir, "a.env")
	writeFile(t, file, "v1")
	mustAdd(t, r, file)
	writeFile(t, file, "v2")

	res, err := r.Restore(context.Background(), file, RestoreOptions{Backup: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.Outcome != OutcomeDeclined {
		t.Errorf("nil Confirm should decline, got %s", res.Outcome)
	}
	if readFile(t, file) != "v2" {
		t.Error("declined restore must not write")
	}
	if _, err := os.Stat(file + BackupSuffix); !os.IsNotExist(err) {
		t.Error("declined restore must not write a backup")
	}
}

func TestRestore_ConfirmDiffContext(t *testing.T) {
	tests := []struct {
		name         string
		contextLines int
		wantContext  int
	}{
		{"no context", 0, 0},
		{"one line", 1, 2},
		{"default", -1, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dir := initRepo(t, storage.ModeFlatFile)
			file := filepath.Join(dir, "a.env")
			writeFile(t, file, "1\n2\n3\n4\n5\n6\n7\n")
			mustAdd(t, r, file)
			writeFile(t, file, "1\n2\n3\nfour\n5\n6\n7\n")

			var shown *DiffResult
			_, err := r.Restore(context.Background(), file, RestoreOptions{
				ContextLines: tt.contextLines,
				Confirm: func(path string, diff *DiffResult) (bool, error) {
					shown = diff
					return false, nil
				},
			})
			if err != nil {
				t.Fatalf("Restore failed: %v", err)
			}
			if shown == nil {
				t.Fatal("Confirm should receive the diff")
			}

			var got int
			for _, l := range shown.Lines {
				if l.Kind == LineContext {
					got++
				}
			}
			if got != tt.wantContext {
				t.Errorf("context lines = %d, want %d:\n%s", got, tt.wantContext, FormatLines(shown.Lines))
			}
		})
	}
}

func TestRestore_Unchanged(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	file := filepath.Join(dir, "a.env")
	writeFile(t, file, "v1")
	mustAdd(t, r, file)

	res, err := r.Restore(context.Background(), file, RestoreOptions{Force: true, Backup: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.Outcome != OutcomeUnchanged || res.BackupPath != "" {
		t.Errorf("expected unchanged without backup, got %+v", res)
	}
}

func TestRestore_BackupNumbering(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	ctx := context.Background()
	file := filepath.Join(dir, "a.env")
	writeFile(t, file, "v1")
	mustAdd(t, r, file)

	for i, want := range []string{file + BackupSuffix, file + BackupSuffix + ".1"} {
		modified := "modified-" + string(rune('a'+i))
		writeFile(t, file, modified)

		res, err := r.Restore(ctx, file, RestoreOptions{Force: true, Backup: true})
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if res.BackupPath != want {
			t.Errorf("backup path = %s, want %s", res.BackupPath, want)
		}
		if got := readFile(t, want); got != modified {
			t.Errorf("backup content = %q, want %q", got, modified)
		}
		if readFile(t, file) != "v1" {
			t.Error("file should be restored")
		}
	}
}

func TestRestore_KeepsModeAndRecreatesMissing(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	ctx := context.Background()
	file := filepath.Join(dir, "nested", "a.env")
	writeFile(t, file, "v1")
	if err := os.Chmod(file, 0640); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	mustAdd(t, r, file)

	writeFile(t, file, "v2")
	if _, err := r.Restore(ctx, file, RestoreOptions{Force: true}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %o, want 640", info.Mode().Perm())
	}

	if err := os.RemoveAll(filepath.Dir(file)); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	res, err := r.Restore(ctx, file, RestoreOptions{Backup: true})
	if err != nil {
		t.Fatalf("Restore of missing file failed: %v", err)
	}
	if res.Outcome != OutcomeRestored || res.BackupPath != "" {
		t.Errorf("missing file should be restored without backup, got %+v", res)
	}
	if readFile(t, file) != "v1" {
		t.Error("missing file should be recreated")
	}
	info, err = os.Stat(file)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("recreated mode = %o, want 600", info.Mode().Perm())
	}
}

func TestRestore_DryRun(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	file := filepath.Join(dir, "a.env")
	writeFile(t, file, "v1")
	mustAdd(t, r, file)
	writeFile(t, file, "v2")

	res, err := r.Restore(context.Background(), file, RestoreOptions{DryRun: true, Backup: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.Outcome != OutcomeWouldRestore || res.BackupPath != file+BackupSuffix {
		t.Errorf("unexpected dry run result %+v", res)
	}
	if readFile(t, file) != "v2" {
		t.Error("dry run must not write")
	}
	if _, err := os.Stat(res.BackupPath); !os.IsNotExist(err) {
		t.Error("dry run must not write a backup")
	}
}

func TestRestore_NotTracked(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	_, err := r.Restore(context.Background(), filepath.Join(dir, "x"), RestoreOptions{Force: true})
	if !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}
}
