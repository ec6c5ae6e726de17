package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/kitty/internal/core"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/keyring"
	"github.com/spf13/cobra"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage the repository password in the OS keyring",
}

var keyringSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the password to the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		password := core.PasswordFromEnv(os.Getenv)
		if password == nil {
			var err error
			if password, err = tty.Password("Enter password: "); err != nil {
				return err
			}
		}
		defer crypto.ClearBytes(password)

		// opening verifies the password
		r, err := core.Open(ctx, workDir, password, options())
		if err != nil {
			return err
		}
		defer r.Close()

		if err := keyring.SavePassword(r.ID(), password); err != nil {
			return fmt.Errorf("failed to save to keyring: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Password saved to keyring\n", okMark)
		return nil
	},
}

var keyringDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the password from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := repoID()
		if err != nil {
			return err
		}
		if err := keyring.DeletePassword(id); err != nil {
			return fmt.Errorf("failed to delete from keyring: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Password removed from keyring\n", okMark)
		return nil
	},
}

var keyringStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a password is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := repoID()
		if err != nil {
			return err
		}
		if keyring.HasPassword(id) {
			fmt.Fprintln(cmd.OutOrStdout(), "Password: stored in keyring")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Password: not stored")
		}
		return nil
	},
}

func init() {
	keyringCmd.AddCommand(keyringSaveCmd)
	keyringCmd.AddCommand(keyringDeleteCmd)
	keyringCmd.AddCommand(keyringStatusCmd)
}
