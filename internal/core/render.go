package core

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	BinarySampleSize    = 8192 // Bytes to sample for text/binary detection
	BinaryThresholdPct  = 10   // Max % non-printable chars for text files
	DefaultContextLines = 3
)

// LineKind classifies one rendered diff line
type LineKind int

const (
	LineContext LineKind = iota // unchanged line shown for context
	LineAdded                   // present in the working copy only
	LineRemoved                 // present in the stored copy only
	LineSkipped                 // marks omitted unchanged lines
)

// DiffLine is one rendered line without its trailing newline
type DiffLine struct {
	Kind LineKind
	Text string
}

// Prefix returns the marker printed before the line text
func (l DiffLine) Prefix() string {
	switch l.Kind {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	case LineSkipped:
		return ""
	default:
		return " "
	}
}

func (l DiffLine) String() string {
	if l.Kind == LineSkipped {
		return "..."
	}
	return l.Prefix() + l.Text
}

// DetectFileType determines if a file is likely text or binary.
// Returns true if the file appears to be text.
//
// Detection heuristic (in order):
//  1. Null bytes present → binary (executables, images, etc.)
//  2. Invalid UTF-8 → binary
//  3. >10% non-printable control chars → binary
func DetectFileType(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	sample := data[:min(len(data), BinarySampleSize)]

	// a multi-byte rune cut by the sample boundary is not an encoding error
	for i := 0; i < utf8.UTFMax && !utf8.Valid(sample) && len(sample) < len(data); i++ {
		sample = sample[:len(sample)-1]
	}
	if !utf8.Valid(sample) {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		// Allow common whitespace: space, tab, newline, carriage return
		if b < 32 && b != 9 && b != 10 && b != 13 {
			nonPrintable++
		}
		if b == 127 {
			nonPrintable++
		}
	}

	threshold := len(sample) * BinaryThresholdPct / 100
	return nonPrintable <= threshold
}

// LineDiff compares stored against live line by line. Removed lines come
// from stored, added lines from live. With context >= 0 up to that many
// unchanged lines around each change are kept and gaps are marked with a
// LineSkipped line; with context < 0 only changed lines are returned.
func LineDiff(stored, live []byte, context int) (lines []DiffLine, additions, deletions int) {
	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(string(stored), string(live))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var all []DiffLine
	for _, d := range diffs {
		kind := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = LineAdded
		case diffmatchpatch.DiffDelete:
			kind = LineRemoved
		}
		for _, text := range splitLines(d.Text) {
			all = append(all, DiffLine{Kind: kind, Text: text})
			switch kind {
			case LineAdded:
				additions++
			case LineRemoved:
				deletions++
			}
		}
	}

	if context < 0 {
		for _, l := range all {
			if l.Kind != LineContext {
				lines = append(lines, l)
			}
		}
		return lines, additions, deletions
	}

	keep := make([]bool, len(all))
	for i, l := range all {
		if l.Kind == LineContext {
			continue
		}
		for j := max(0, i-context); j <= min(len(all)-1, i+context); j++ {
			keep[j] = true
		}
	}

	last := -1
	for i, l := range all {
		if !keep[i] {
			continue
		}
		if i > last+1 {
			lines = append(lines, DiffLine{Kind: LineSkipped})
		}
		lines = append(lines, l)
		last = i
	}
	if last >= 0 && last < len(all)-1 {
		lines = append(lines, DiffLine{Kind: LineSkipped})
	}
	return lines, additions, deletions
}

// FormatLines renders lines as plain text, one per row
func FormatLines(lines []DiffLine) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
