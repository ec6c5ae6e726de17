package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/storage"
)

func TestInit(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)

			if r.Mode() != mode {
				t.Errorf("Mode() = %s, want %s", r.Mode(), mode)
			}
			if !config.RepoConfigExists(r.Dir()) {
				t.Error("repository config should exist")
			}
			got, err := storage.ReadMode(r.Dir())
			if err != nil {
				t.Fatalf("ReadMode failed: %v", err)
			}
			if got != mode {
				t.Errorf("storage marker = %s, want %s", got, mode)
			}

			_, err = Init(context.Background(), dir, testPassword, InitOptions{Iterations: crypto.MinIterations})
			if !errors.Is(err, ErrAlreadyExists) {
				t.Errorf("second Init: expected ErrAlreadyExists, got %v", err)
			}
		})
	}
}

func TestInit_RequiresPassword(t *testing.T) {
	_, err := Init(context.Background(), tempWorkDir(t), nil, InitOptions{})
	if !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
}

func TestOpen_NotInitialized(t *testing.T) {
	_, err := Open(context.Background(), tempWorkDir(t), testPassword, Options{})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestOpen_WrongPassword(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)
			if err := r.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			_, err := Open(context.Background(), dir, []byte("wrong"), Options{})
			if !errors.Is(err, ErrWrongPassword) {
				t.Errorf("expected ErrWrongPassword, got %v", err)
			}
		})
	}
}

func TestOpenReadOnly_CannotDecrypt(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	file := filepath.Join(dir, "a.env")
	writeFile(t, file, "v1")
	mustAdd(t, r, file)
	r.Close()

	ro, err := OpenReadOnly(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	entries, err := ro.List(context.Background(), catalog.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}

	if _, err := ro.Diff(context.Background(), DiffOptions{}); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Diff without key: expected ErrPasswordRequired, got %v", err)
	}
}

func TestAdd_TracksCanonicalPath(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)
			ctx := context.Background()

			file := filepath.Join(dir, "config", "secret.env")
			writeFile(t, file, "TOKEN=1\n")

			// a symlink and a relative-looking path resolve to the same entry
			link := filepath.Join(dir, "link.env")
			if err := os.Symlink(file, link); err != nil {
				t.Fatalf("Symlink failed: %v", err)
			}

			e, err := r.Add(ctx, filepath.Join(dir, "config", "..", "config", "secret.env"))
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if e.Path != file {
				t.Errorf("Path = %s, want %s", e.Path, file)
			}
			if e.Size != int64(len("TOKEN=1\n")) {
				t.Errorf("Size = %d", e.Size)
			}

			again, err := r.Add(ctx, link)
			if err != nil {
				t.Fatalf("Add via symlink failed: %v", err)
			}
			if !again.AddedAt.Equal(e.AddedAt) {
				t.Errorf("re-add changed AddedAt: %v -> %v", e.AddedAt, again.AddedAt)
			}

			entries, err := r.List(ctx, catalog.ListOptions{})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("expected 1 entry after re-add, got %d", len(entries))
			}
		})
	}
}

func TestAdd_ReplacesFlatBlob(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	ctx := context.Background()
	file := filepath.Join(dir, "a.env")

	writeFile(t, file, "v1")
	first, err := r.Add(ctx, file)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	writeFile(t, file, "v2")
	second, err := r.Add(ctx, file)
	if err != nil {
		t.Fatalf("re-Add failed: %v", err)
	}

	if first.Locator == second.Locator {
		t.Fatal("re-add should write a fresh blob")
	}
	if ok, _ := r.backend.Exists(ctx, first.Locator); ok {
		t.Error("previous blob should be deleted after re-add")
	}
	locs, err := r.backend.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("expected exactly 1 blob, got %d", len(locs))
	}
}

func TestAdd_Rejects(t *testing.T) {
	r, dir := initRepo(t, storage.ModeFlatFile)
	ctx := context.Background()

	if _, err := r.Add(ctx, filepath.Join(dir, "nope")); !errors.Is(err, ErrMissing) {
		t.Errorf("missing file: expected ErrMissing, got %v", err)
	}
	if _, err := r.Add(ctx, dir); !errors.Is(err, ErrNotRegular) {
		t.Errorf("directory: expected ErrNotRegular, got %v", err)
	}
	if _, err := r.Add(ctx, config.RepoConfigPath(r.Dir())); !errors.Is(err, ErrInsideRepository) {
		t.Errorf("repository file: expected ErrInsideRepository, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)
			ctx := context.Background()

			a := filepath.Join(dir, "a.env")
			b := filepath.Join(dir, "b.env")
			writeFile(t, a, "A")
			writeFile(t, b, "B")
			mustAdd(t, r, a)
			mustAdd(t, r, b)

			removed, err := r.Remove(ctx, a, RemoveOptions{})
			if err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if ok, _ := r.backend.Exists(ctx, removed.Locator); ok {
				t.Error("content should be deleted without KeepContent")
			}
			if readFile(t, a) != "A" {
				t.Error("working copy must not be touched")
			}

			entries, err := r.List(ctx, catalog.ListOptions{})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(entries) != 1 || entries[0].Path != b {
				t.Errorf("expected only %s tracked, got %+v", b, entries)
			}

			report, err := r.Diff(ctx, DiffOptions{Path: a})
			if err != nil {
				t.Fatalf("Diff failed: %v", err)
			}
			if report.Results[0].Status != StatusUntracked {
				t.Errorf("removed path status = %s, want untracked", report.Results[0].Status)
			}
			if len(report.Errors) != 1 || !errors.Is(report.Errors[0], ErrNotTracked) {
				t.Errorf("expected ErrNotTracked entry error, got %v", report.Errors)
			}

			if _, err := r.Remove(ctx, a, RemoveOptions{}); !errors.Is(err, ErrNotTracked) {
				t.Errorf("second Remove: expected ErrNotTracked, got %v", err)
			}
		})
	}
}

func TestRemove_KeepContent(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			r, dir := initRepo(t, mode)
			ctx := context.Background()

			a := filepath.Join(dir, "a.env")
			writeFile(t, a, "A")
			mustAdd(t, r, a)

			removed, err := r.Remove(ctx, a, RemoveOptions{KeepContent: true})
			if err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if ok, _ := r.backend.Exists(ctx, removed.Locator); !ok {
				t.Error("content should survive with KeepContent")
			}

			report, err := r.Doctor(ctx)
			if err != nil {
				t.Fatalf("Doctor failed: %v", err)
			}
			if report.Retained != 1 || len(report.Orphans) != 0 {
				t.Errorf("retained content should be accounted for: %+v", report)
			}
		})
	}
}
