package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/spf13/cobra"
)

var (
	rmForce       bool
	rmKeepContent bool
)

var rmCmd = &cobra.Command{
	Use:     "rm <file>...",
	Aliases: []string{"remove"},
	Short:   "Stop tracking files",
	Long:    `Removes files from tracking and deletes their stored copies. Working files are never touched.`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			if !rmForce {
				ok, err := tty.Confirm(fmt.Sprintf("Stop tracking %s?", path))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s %s skipped\n", warnMark, path)
					continue
				}
			}

			e, err := r.Remove(ctx, path, core.RemoveOptions{KeepContent: rmKeepContent})
			if err != nil {
				failed++
				fmt.Fprintln(cmd.ErrOrStderr(), failMark+" "+path+": "+describeError(err))
				continue
			}
			msg := "removed"
			if rmKeepContent {
				msg = "removed (stored copy kept)"
			}
			fmt.Fprintf(out, "%s %s %s\n", okMark, msg, color.YellowString(e.Path))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "do not ask for confirmation")
	rmCmd.Flags().BoolVar(&rmKeepContent, "keep-content", false, "keep the stored copy")
}
