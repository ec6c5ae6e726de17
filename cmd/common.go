package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/core"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/keyring"
	"github.com/illarion/kitty/internal/storage"
)

const workDir = "."

// tty answers password and confirmation prompts
var tty = core.StdTerminal()

var (
	okMark   = color.GreenString("✓")
	failMark = color.RedString("✗")
	warnMark = color.YellowString("⚠")
	hintMark = color.CyanString("→")
)

func options() core.Options {
	return core.Options{DirName: settings.Dir, Logger: logger}
}

// repoID reads the repository id without a password
func repoID() (string, error) {
	cfg, err := config.LoadRepoConfig(core.RepoDir(workDir, options()))
	if errors.Is(err, os.ErrNotExist) {
		return "", core.ErrNotInitialized
	}
	if err != nil {
		return "", err
	}
	return cfg.ID, nil
}

// GetPassword retrieves the password from the environment, the OS keyring
// or a terminal prompt, in that order. The caller clears the result.
func GetPassword(ctx context.Context, prompt string) ([]byte, error) {
	if password := core.PasswordFromEnv(os.Getenv); password != nil {
		return password, nil
	}

	if settings.UseKeyring {
		if id, err := repoID(); err == nil {
			password, err := keyring.GetPassword(id)
			if err == nil {
				logger.Debug(ctx, "password read from keyring")
				return password, nil
			}
			logger.Debug(ctx, "keyring lookup failed", "error", err)
		}
	}

	password, err := tty.Password(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// GetPasswordForInit checks the environment first, then prompts with
// confirmation
func GetPasswordForInit() ([]byte, error) {
	if password := core.PasswordFromEnv(os.Getenv); password != nil {
		return password, nil
	}
	return tty.NewPassword()
}

// openRepo opens the repository with a password
func openRepo(ctx context.Context) (*core.Repo, error) {
	password, err := GetPassword(ctx, "Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password)

	return core.Open(ctx, workDir, password, options())
}

func openRepoForMigration(ctx context.Context) (*core.Repo, error) {
	password, err := GetPassword(ctx, "Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password)

	return core.OpenForMigration(ctx, workDir, password, options())
}

func openReadOnly(ctx context.Context) (*core.Repo, error) {
	return core.OpenReadOnly(ctx, workDir, options())
}

// HandleError prints err with remediation hints and exits with status 1
func HandleError(err error) {
	fmt.Fprintln(os.Stderr, describeError(err))
	os.Exit(1)
}

func describeError(err error) string {
	prefix := color.RedString("Error:")
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		return prefix + " kitty not initialized\n" +
			hintMark + " Run " + color.YellowString("kitty init") + " first"
	case errors.Is(err, core.ErrAlreadyExists):
		return prefix + " a kitty repository already exists here\n" +
			hintMark + " Use " + color.YellowString("kitty list") + " to see tracked files"
	case errors.Is(err, core.ErrWrongPassword):
		return prefix + " " + err.Error()
	case errors.Is(err, storage.ErrSchemaNeedsMigration):
		return prefix + " the database was created by an older version\n" +
			hintMark + " Run " + color.YellowString("kitty migrate") + " to upgrade it"
	case errors.Is(err, core.ErrNotMigrated):
		return prefix + " " + err.Error() + "\n" +
			hintMark + " Run " + color.YellowString("kitty migrate") + " first"
	case errors.Is(err, core.ErrNotTracked):
		return prefix + " " + err.Error() + "\n" +
			hintMark + " Use " + color.YellowString("kitty add") + " to track it"
	default:
		return prefix + " " + err.Error()
	}
}
