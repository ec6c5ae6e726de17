package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim unused space in the index or database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		res, err := r.Compact(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s compacted %s: %s -> %s\n",
			okMark, res.Path, formatSize(res.Before), formatSize(res.After))
		return nil
	},
}
