package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/storage"
)

var testPassword = []byte("p")

var allModes = []storage.Mode{storage.ModeFlatFile, storage.ModeRelational}

// tempWorkDir returns a temp dir with symlinks resolved so stored paths
// compare equal on systems where the temp root is a link
func tempWorkDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	return dir
}

func initRepo(t *testing.T, mode storage.Mode) (*Repo, string) {
	t.Helper()
	dir := tempWorkDir(t)
	r, err := Init(context.Background(), dir, testPassword, InitOptions{
		Mode:       mode,
		Iterations: crypto.MinIterations,
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, dir
}

func reopen(t *testing.T, r *Repo) *Repo {
	t.Helper()
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	r2, err := Open(context.Background(), r.WorkDir(), testPassword, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = r2.Close() })
	return r2
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func mustAdd(t *testing.T, r *Repo, path string) {
	t.Helper()
	if _, err := r.Add(context.Background(), path); err != nil {
		t.Fatalf("Add(%s) failed: %v", path, err)
	}
}
