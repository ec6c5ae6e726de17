package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func TestCheck(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	committed := write("committed.env", "A=1")
	ignored := write("ignored.env", "B=2")
	loose := write("loose.env", "C=3")
	write(".gitignore", ".kitty\nignored.env\n")
	runGit(t, dir, "add", "committed.env", ".gitignore")
	runGit(t, dir, "commit", "-q", "-m", "init")

	outside := filepath.Join(t.TempDir(), "outside.env")
	status := Check(dir, ".kitty", []string{committed, ignored, loose, outside})

	if !status.IsRepo {
		t.Fatal("Expected git repo")
	}
	if !status.RepoDirIgnored {
		t.Error(".kitty should be ignored")
	}
	if status.RepoDirTracked {
		t.Error(".kitty should not be tracked")
	}
	if len(status.Committed) != 1 || status.Committed[0] != committed {
		t.Errorf("Committed mismatch: %v", status.Committed)
	}
	// committed.env is not ignored either
	if len(status.Unignored) != 2 {
		t.Errorf("Unignored mismatch: %v", status.Unignored)
	}
}

func TestCheckNotARepo(t *testing.T) {
	dir := t.TempDir()
	if IsGitRepo(dir) {
		t.Skip("temp dir is inside a git work tree")
	}
	status := Check(dir, ".kitty", []string{filepath.Join(dir, "a")})
	if status.IsRepo || len(status.Committed) != 0 {
		t.Errorf("Expected empty status, got %+v", status)
	}
}
