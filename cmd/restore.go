package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/spf13/cobra"
)

var (
	restoreForce  bool
	restoreDryRun bool
	restoreBackup bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>...",
	Short: "Write stored copies back to the working tree",
	Long: `Decrypts the stored copy of each file and writes it in place. A file that
differs from its copy is only overwritten after confirmation or with --force.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		backup := settings.Backup
		if cmd.Flags().Changed("backup") {
			backup = restoreBackup
		}

		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		opts := core.RestoreOptions{
			Force:        restoreForce,
			DryRun:       restoreDryRun,
			Backup:       backup,
			ContextLines: settings.ContextLines,
			Confirm: func(path string, d *core.DiffResult) (bool, error) {
				if d != nil {
					printDiffResult(out, *d, core.DiffOptions{})
				}
				return tty.Confirm(fmt.Sprintf("Overwrite %s with the stored copy?", path))
			},
		}

		failed := 0
		for _, path := range args {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.Restore(ctx, path, opts)
			if err != nil {
				failed++
				fmt.Fprintln(cmd.ErrOrStderr(), failMark+" "+path+": "+describeError(err))
				continue
			}
			printRestoreResult(cmd, res)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be restored", failed, len(args))
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "overwrite without asking")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "show what would be restored")
	restoreCmd.Flags().BoolVar(&restoreBackup, "backup", true, "keep the current file as <file>.kitty-backup")
}

func printRestoreResult(cmd *cobra.Command, res *core.RestoreResult) {
	out := cmd.OutOrStdout()
	path := color.YellowString(res.Path)
	switch res.Outcome {
	case core.OutcomeUnchanged:
		fmt.Fprintf(out, "%s %s already matches its stored copy\n", okMark, path)
	case core.OutcomeDeclined:
		fmt.Fprintf(out, "%s %s skipped\n", warnMark, path)
	case core.OutcomeWouldRestore:
		fmt.Fprintf(out, "%s would restore %s\n", hintMark, path)
		if res.BackupPath != "" {
			fmt.Fprintf(out, "  backup: %s\n", res.BackupPath)
		}
	case core.OutcomeRestored:
		fmt.Fprintf(out, "%s restored %s\n", okMark, path)
		if res.BackupPath != "" {
			fmt.Fprintf(out, "  backup: %s\n", res.BackupPath)
		}
	}
}
