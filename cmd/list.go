package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/illarion/kitty/internal/catalog"
	"github.com/spf13/cobra"
)

var (
	listPath  string
	listDate  string
	listSince string
	listUntil string
	listGroup bool
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked files",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := listOptions()
		if err != nil {
			return err
		}

		r, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		entries, err := r.List(cmd.Context(), opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case listJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		case len(entries) == 0:
			fmt.Fprintln(out, "No tracked files.")
			return nil
		case listGroup:
			printGroups(out, catalog.GroupByDir(entries))
		default:
			printEntries(out, entries, false)
		}
		fmt.Fprintf(out, "\n%d file(s) tracked\n", len(entries))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listPath, "path", "", "only paths containing this text")
	listCmd.Flags().StringVar(&listDate, "date", "", "only files updated on this day (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listSince, "since", "", "only files updated on or after this day")
	listCmd.Flags().StringVar(&listUntil, "until", "", "only files updated on or before this day")
	listCmd.Flags().BoolVar(&listGroup, "group", false, "group files by directory")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON")
}

func listOptions() (catalog.ListOptions, error) {
	opts := catalog.ListOptions{PathContains: listPath}
	for _, f := range []struct {
		value string
		dst   *time.Time
	}{
		{listDate, &opts.On},
		{listSince, &opts.Since},
		{listUntil, &opts.Until},
	} {
		if f.value == "" {
			continue
		}
		t, err := catalog.ParseDate(f.value)
		if err != nil {
			return opts, err
		}
		*f.dst = t
	}
	return opts, nil
}

func printGroups(out io.Writer, groups []catalog.Group) {
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, color.CyanString(g.Dir))
		printEntries(out, g.Entries, true)
	}
}

func printEntries(out io.Writer, entries []catalog.Entry, base bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		name := e.Path
		if base {
			name = "  " + filepath.Base(e.Path)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, formatSize(e.Size), e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
