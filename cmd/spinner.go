package cmd

import (
	"time"

	"github.com/briandowns/spinner"
)

// startSpinner shows progress on stderr unless verbose output would
// interleave with it. cleanup stops it and prints FinalMSG.
func startSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	// Ignore color errors - continue without colored spinner if it fails.
	_ = s.Color("cyan")

	if !verbose && !debug {
		s.Start()
	}

	cleanup := func() {
		if s.Active() {
			s.Stop()
		}
	}
	return s, cleanup
}
