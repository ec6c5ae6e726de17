package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/storage"
	"github.com/spf13/cobra"
)

var initSQLite bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a kitty repository in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := GetPasswordForInit()
		if err != nil {
			return err
		}
		defer crypto.ClearBytes(password)

		mode := storage.ModeFlatFile
		if initSQLite {
			mode = storage.ModeRelational
		}

		r, err := core.Init(cmd.Context(), workDir, password, core.InitOptions{
			Options:    options(),
			Mode:       mode,
			Iterations: settings.Iterations,
		})
		if err != nil {
			return err
		}
		defer r.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Initialized kitty repository in %s (storage: %s)\n",
			okMark, color.YellowString(r.Dir()), r.Mode())
		fmt.Fprintf(out, "%s Run %s to track files\n", hintMark, color.YellowString("kitty add <file>"))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initSQLite, "sqlite", false, "store encrypted copies in a SQLite database")
}
