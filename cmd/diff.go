package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/core"
	"github.com/spf13/cobra"
)

var (
	diffOnlyChanged  bool
	diffSummary      bool
	diffContext      bool
	diffContextLines int
)

var diffCmd = &cobra.Command{
	Use:   "diff [file]",
	Short: "Show how working files differ from their stored copies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts := core.DiffOptions{
			OnlyChanged:  diffOnlyChanged,
			Summary:      diffSummary,
			Context:      diffContext,
			ContextLines: settings.ContextLines,
		}
		if cmd.Flags().Changed("context-lines") {
			opts.Context = true
			opts.ContextLines = diffContextLines
		}
		if len(args) == 1 {
			opts.Path = args[0]
		}

		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		report, err := r.Diff(ctx, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, res := range report.Results {
			printDiffResult(out, res, opts)
		}
		for _, e := range report.Errors {
			if errors.Is(e, core.ErrNotTracked) {
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", failMark, e)
		}

		if opts.Summary {
			s := report.Summary
			fmt.Fprintln(out, "\nSummary of changes:")
			fmt.Fprintf(out, "  Files changed: %d\n", s.Changed)
			fmt.Fprintf(out, "  Missing: %d\n", s.Missing)
			fmt.Fprintf(out, "  Additions: %s\n", color.GreenString("+%d", s.Additions))
			fmt.Fprintf(out, "  Deletions: %s\n", color.RedString("-%d", s.Deletions))
		} else if !report.HasChanges() && len(report.Errors) == 0 {
			fmt.Fprintln(out, "No changes found in tracked files.")
		}

		if len(report.Errors) > 0 {
			errs := make([]error, len(report.Errors))
			for i, e := range report.Errors {
				errs[i] = e
			}
			return errors.Join(errs...)
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffOnlyChanged, "only-changed", false, "hide files without changes")
	diffCmd.Flags().BoolVar(&diffSummary, "summary", false, "print line counts instead of diffs")
	diffCmd.Flags().BoolVar(&diffContext, "context", false, "show unchanged lines around changes")
	diffCmd.Flags().IntVar(&diffContextLines, "context-lines", 3, "number of context lines (implies --context)")
}

func printDiffResult(out io.Writer, res core.DiffResult, opts core.DiffOptions) {
	switch res.Status {
	case core.StatusUntracked:
		fmt.Fprintf(out, "%s %s is not tracked\n", warnMark, color.YellowString(res.Path))
	case core.StatusMissing:
		fmt.Fprintf(out, "%s %s is missing from the working tree\n", failMark, color.YellowString(res.Path))
	case core.StatusUnchanged:
		if !opts.Summary {
			fmt.Fprintf(out, "%s %s: Files are identical.\n", okMark, res.Path)
		}
	case core.StatusChanged:
		if opts.Summary {
			fmt.Fprintf(out, "%s %s %s\n", res.Path,
				color.GreenString("+%d", res.Additions), color.RedString("-%d", res.Deletions))
			return
		}
		fmt.Fprintln(out, color.New(color.Bold).Sprintf("diff %s", res.Path))
		if res.Binary {
			fmt.Fprintln(out, "Binary files differ")
			return
		}
		printLines(out, res.Lines)
	}
}

func printLines(out io.Writer, lines []core.DiffLine) {
	for _, l := range lines {
		switch l.Kind {
		case core.LineAdded:
			fmt.Fprintln(out, color.GreenString("%s", l))
		case core.LineRemoved:
			fmt.Fprintln(out, color.RedString("%s", l))
		case core.LineSkipped:
			fmt.Fprintln(out, color.CyanString("%s", l))
		default:
			fmt.Fprintln(out, l)
		}
	}
}
