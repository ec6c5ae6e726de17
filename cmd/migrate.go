package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/illarion/kitty/internal/storage"
	"github.com/spf13/cobra"
)

var migrateForce bool

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"migrate-sqlite"},
	Short:   "Move stored copies into the SQLite database",
	Long: `Copies every stored file into .kitty/kitty.db and switches the repository
to database storage once all copies are verified. Safe to re-run: entries
already in the database are skipped. Flat-file copies are left in place
until you run cleanup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		r, err := openRepoForMigration(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		if !migrateForce {
			target := "the SQLite database"
			if r.Mode() == storage.ModeRelational {
				target = "the upgraded SQLite database"
			}
			ok, err := tty.Confirm(fmt.Sprintf("Migrate stored copies in %s to %s?", r.Dir(), target))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "%s migration cancelled\n", warnMark)
				return nil
			}
		}

		s, cleanup := startSpinner("Migrating stored copies...")
		report, err := r.Migrate(ctx, core.MigrateOptions{
			Progress: func(done, total int, path string) {
				s.Lock()
				s.Suffix = fmt.Sprintf(" Migrating stored copies... %d/%d", done, total)
				s.Unlock()
				logger.Info(ctx, "migrate progress", "done", done, "total", total, "path", path)
			},
		})
		cleanup()
		if err != nil {
			return err
		}

		if report.SchemaUpgraded {
			fmt.Fprintf(out, "%s database schema upgraded\n", okMark)
		}
		fmt.Fprintf(out, "%s migrated %d, skipped %d, failed %d (of %d)\n",
			okMark, report.Migrated, report.Skipped, report.Failed, report.Total)
		if report.Pruned > 0 {
			fmt.Fprintf(out, "%s dropped %d database rows for files removed since the last run\n", okMark, report.Pruned)
		}

		if report.Failed > 0 {
			for _, e := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", failMark, e)
			}
			return errors.New("migration incomplete, storage unchanged; fix the errors above and re-run")
		}

		if report.ModeChanged {
			fmt.Fprintf(out, "%s repository now uses database storage\n", okMark)
		}
		fmt.Fprintf(out, "%s Run %s to delete the old flat-file copies\n", hintMark, color.YellowString("kitty cleanup"))
		return nil
	},
}

var cleanupForce bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete flat-file copies left behind by migrate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		r, err := openReadOnly(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		if !cleanupForce {
			ok, err := tty.Confirm("Delete flat-file copies that the database now holds?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "%s cleanup cancelled\n", warnMark)
				return nil
			}
		}

		report, err := r.Cleanup(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s removed %d flat-file copies\n", okMark, report.BlobsRemoved)
		if report.IndexRemoved {
			fmt.Fprintf(out, "%s removed the old index\n", okMark)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateForce, "force", "f", false, "do not ask for confirmation")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "do not ask for confirmation")
}
