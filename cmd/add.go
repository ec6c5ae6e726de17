package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Store encrypted copies of files",
	Long:  `Encrypts the current contents of each file and tracks it. Adding a tracked file replaces its stored copy.`,
	Args:  cobra.MinimumNArgs(1),
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
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := r.Add(ctx, path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", failMark, path, err)
				continue
			}
			fmt.Fprintf(out, "%s added %s\n", okMark, color.YellowString(e.Path))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be added", failed, len(args))
		}
		return nil
	},
}
