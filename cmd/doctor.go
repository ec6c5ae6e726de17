package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the repository for missing, corrupt or stray copies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		report, err := r.Doctor(cmd.Context())
		if err != nil {
			return err
		}
		printDoctorReport(cmd, report)

		if !report.Healthy() {
			return errors.New("repository needs attention")
		}
		return nil
	},
}

func printDoctorReport(cmd *cobra.Command, d *core.DoctorReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Storage: %s\n", d.Mode)

	if d.NeedsMigration {
		fmt.Fprintf(out, "%s database schema is out of date\n", failMark)
		fmt.Fprintf(out, "%s Run %s\n", hintMark, color.YellowString("kitty migrate"))
		return
	}

	fmt.Fprintf(out, "%s %d tracked, %d retained\n", okMark, d.Tracked, d.Retained)
	if !d.IndexModified.IsZero() {
		fmt.Fprintf(out, "Index last changed: %s\n", d.IndexModified.Local().Format("2006-01-02 15:04:05"))
	}
	check := func(items []string, ok, bad string) {
		if len(items) == 0 {
			fmt.Fprintf(out, "%s %s\n", okMark, ok)
			return
		}
		fmt.Fprintf(out, "%s %s\n", failMark, bad)
		for _, item := range items {
			fmt.Fprintf(out, "    %s\n", item)
		}
	}
	check(d.MissingBlobs, "every entry has a stored copy", "stored copy missing:")
	check(d.Corrupt, "all checksums match", "checksum mismatch:")
	check(d.Orphans, "no unreferenced copies", "unreferenced copies:")

	for _, p := range d.MissingFiles {
		fmt.Fprintf(out, "%s %s is missing from the working tree\n", warnMark, p)
	}
	if d.LegacyBlobs > 0 {
		fmt.Fprintf(out, "%s %d flat-file copies left after migration\n", warnMark, d.LegacyBlobs)
		fmt.Fprintf(out, "%s Run %s to delete them\n", hintMark, color.YellowString("kitty cleanup"))
	}

	if g := d.Git; g != nil && g.IsRepo {
		if !g.RepoDirIgnored {
			fmt.Fprintf(out, "%s %s is not in .gitignore\n", warnMark, settings.Dir)
		}
		if g.RepoDirTracked {
			fmt.Fprintf(out, "%s %s is committed to git\n", failMark, settings.Dir)
		}
		for _, p := range g.Committed {
			fmt.Fprintf(out, "%s %s is committed to git in plaintext\n", failMark, p)
		}
		for _, p := range g.Unignored {
			fmt.Fprintf(out, "%s %s is not ignored by git\n", warnMark, p)
		}
	}
}
