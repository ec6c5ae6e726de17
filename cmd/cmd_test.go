package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupWorkDir runs the test inside a fresh directory with a password in
// the environment and no keyring or user config
func setupWorkDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	t.Chdir(dir)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.EnvPassword, "p")
	t.Setenv(config.EnvNoKeyring, "1")
	t.Setenv(config.EnvIterations, "100000")
	t.Setenv(config.EnvDir, "")
	return dir
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runKitty(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runKitty(t, args...)
	require.NoError(t, err, "kitty %s\n%s", strings.Join(args, " "), out)
	return out
}

func TestWorkflow(t *testing.T) {
	dir := setupWorkDir(t)
	file := filepath.Join(dir, "a.env")

	out := mustRun(t, "init")
	assert.Contains(t, out, "Initialized kitty repository")

	require.NoError(t, os.WriteFile(file, []byte("v1\n"), 0600))
	out = mustRun(t, "add", "a.env")
	assert.Contains(t, out, "added "+file)

	out = mustRun(t, "diff")
	assert.Contains(t, out, "No changes found in tracked files.")

	require.NoError(t, os.WriteFile(file, []byte("v2\n"), 0600))
	out = mustRun(t, "diff", "a.env")
	assert.Contains(t, out, "-v1")
	assert.Contains(t, out, "+v2")

	out = mustRun(t, "diff", "--summary")
	assert.Contains(t, out, "Files changed: 1")
	assert.Contains(t, out, "Additions: +1")

	out = mustRun(t, "restore", "--force", "a.env")
	assert.Contains(t, out, "restored")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "v1\n", string(data))
	backup, err := os.ReadFile(file + core.BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(backup))

	out = mustRun(t, "list")
	assert.Contains(t, out, file)
	assert.Contains(t, out, "1 file(s) tracked")

	grouped := mustRun(t, "list", "--group")
	assert.Contains(t, grouped, dir)
	assert.Contains(t, grouped, "a.env")

	mustRun(t, "doctor")

	out = mustRun(t, "rm", "--force", "a.env")
	assert.Contains(t, out, "removed")
	out = mustRun(t, "list")
	assert.Contains(t, out, "No tracked files.")

	_, err = runKitty(t, "diff", "a.env")
	assert.ErrorIs(t, err, core.ErrNotTracked)
}

func TestMigrateAndCleanup(t *testing.T) {
	dir := setupWorkDir(t)
	file := filepath.Join(dir, "a.env")

	mustRun(t, "init")
	require.NoError(t, os.WriteFile(file, []byte("secret\n"), 0600))
	mustRun(t, "add", "a.env")

	_, err := runKitty(t, "cleanup", "--force")
	assert.ErrorIs(t, err, core.ErrNotMigrated)

	out := mustRun(t, "migrate", "--force")
	assert.Contains(t, out, "migrated 1, skipped 0, failed 0")

	out = mustRun(t, "migrate-sqlite", "--force")
	assert.Contains(t, out, "migrated 0, skipped 1, failed 0")

	out = mustRun(t, "cleanup", "--force")
	assert.Contains(t, out, "removed 1 flat-file copies")

	out = mustRun(t, "diff")
	assert.Contains(t, out, "No changes found in tracked files.")
}

func TestInitSQLite(t *testing.T) {
	setupWorkDir(t)

	out := mustRun(t, "init", "--sqlite")
	assert.Contains(t, out, "storage: sqlite")

	_, err := runKitty(t, "init")
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestNotInitialized(t *testing.T) {
	setupWorkDir(t)

	_, err := runKitty(t, "list")
	require.ErrorIs(t, err, core.ErrNotInitialized)
	assert.Contains(t, describeError(err), "kitty init")
}

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(core.ErrSchemaNeedsMigration), "kitty migrate")
	assert.Contains(t, describeError(errors.New("boom")), "boom")
}

func TestListOptions(t *testing.T) {
	resetFlags(rootCmd)
	listDate = "2025-03-01"
	listPath = "env"
	defer resetFlags(rootCmd)

	opts, err := listOptions()
	require.NoError(t, err)
	assert.Equal(t, "env", opts.PathContains)
	assert.Equal(t, "2025-03-01", opts.On.Format("2006-01-02"))

	listSince = "yesterday"
	_, err = listOptions()
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KiB", formatSize(1536))
	assert.Equal(t, "2.0 MiB", formatSize(2*1024*1024))
}
