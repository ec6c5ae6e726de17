package git

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// Status describes how a repository and its tracked files relate to git
type Status struct {
	IsRepo         bool
	RepoDirIgnored bool     // the kitty directory is ignored by git
	RepoDirTracked bool     // files of the kitty directory are committed
	Committed      []string // plaintext files tracked by git (bad)
	Unignored      []string // plaintext files not in .gitignore (warning)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	// git check-ignore returns exit code 0 if file is ignored
	return cmd.Run() == nil
}

// Check inspects git state for the repository directory repoDir and the
// tracked plaintext files. Files outside workDir are skipped: git cannot
// commit them from this work tree.
func Check(workDir, repoDir string, files []string) *Status {
	status := &Status{}
	if !IsGitRepo(workDir) {
		return status
	}
	status.IsRepo = true
	status.RepoDirIgnored = IsIgnored(workDir, repoDir)
	status.RepoDirTracked = IsTracked(workDir, repoDir)

	for _, file := range files {
		rel, err := filepath.Rel(workDir, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if IsTracked(workDir, rel) {
			status.Committed = append(status.Committed, file)
		}
		if !IsIgnored(workDir, rel) {
			status.Unignored = append(status.Unignored, file)
		}
	}
	return status
}
