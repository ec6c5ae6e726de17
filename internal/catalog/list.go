package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DateLayout is the format accepted for list date filters
const DateLayout = "2006-01-02"

// ListOptions filters entries. Zero values disable a filter. Dates are
// compared by calendar day in local time against UpdatedAt.
type ListOptions struct {
	PathContains string
	On           time.Time
	Since        time.Time
	Until        time.Time
}

// ParseDate parses a YYYY-MM-DD date in local time
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func day(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

// Filter returns the entries matching opts, preserving order
func Filter(entries []Entry, opts ListOptions) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if opts.PathContains != "" && !strings.Contains(e.Path, opts.PathContains) {
			continue
		}
		d := day(e.UpdatedAt)
		if !opts.On.IsZero() && d != day(opts.On) {
			continue
		}
		if !opts.Since.IsZero() && d < day(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && d > day(opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Group is the set of entries sharing a parent directory
type Group struct {
	Dir     string
	Entries []Entry
}

// GroupByDir groups entries by parent directory. Groups are sorted by
// directory and entries within a group by path.
func GroupByDir(entries []Entry) []Group {
	byDir := make(map[string][]Entry)
	for _, e := range entries {
		dir := filepath.Dir(e.Path)
		byDir[dir] = append(byDir[dir], e)
	}

	groups := make([]Group, 0, len(byDir))
	for dir, es := range byDir {
		sort.Slice(es, func(i, j int) bool { return es[i].Path < es[j].Path })
		groups = append(groups, Group{Dir: dir, Entries: es})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Dir < groups[j].Dir })
	return groups
}
