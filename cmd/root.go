package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	debug    bool
	dirFlag  string
	settings = config.DefaultSettings()
	logger   = logging.Discard()

	rootCmd = &cobra.Command{
		Use:   "kitty",
		Short: "Keep encrypted shadow copies of sensitive files",
		Long: `kitty keeps password-encrypted copies of files you never want to lose
or commit, such as .env files and local credentials.

Copies live in a .kitty directory next to your project. Use diff to see
how working files drifted from their copies and restore to bring them back.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "repository directory (default .kitty)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(keyringCmd)
}

// Execute runs the command line
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case verbose:
		level = slog.LevelInfo
	}
	logger = logging.New(os.Stderr, level)

	path, err := config.UserSettingsPath()
	if err != nil {
		logger.Debug(cmd.Context(), "no user config directory", "error", err)
		path = ""
	}
	if settings, err = config.LoadSettings(path, os.Getenv); err != nil {
		return err
	}
	if dirFlag != "" {
		settings.Dir = dirFlag
	}

	logger.Debug(cmd.Context(), "settings loaded", "dir", settings.Dir, "keyring", settings.UseKeyring)
	return nil
}
