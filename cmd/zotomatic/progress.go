// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled indicates whether a spinner should be shown. Disabled
	// when --json or --quiet are set, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	// NoColor disables colored output in the spinner.
	NoColor bool
}

// NewProgressConfig derives a progress configuration from global flags
// and TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewSpinner creates an indeterminate spinner for the --watch liveness
// indicator. Returns nil if progress is disabled, so callers can treat
// it as a safe no-op.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}

// runLivenessSpinner starts a background spinner labeled with
// phaseDescription(phase) and returns a channel the caller closes to
// stop it. When progress is disabled it starts nothing and returns nil;
// callers close the channel only when it is non-nil.
func runLivenessSpinner(cfg ProgressConfig, phase string) chan struct{} {
	spinner := NewSpinner(cfg, phaseDescription(phase))
	if spinner == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				_ = spinner.Finish()
				return
			case <-ticker.C:
				_ = spinner.Add(1)
			}
		}
	}()
	return done
}

// phaseDescription maps an engine tick phase to the text shown next to
// the --watch spinner.
func phaseDescription(phase string) string {
	switch phase {
	case "scanning":
		return "Scanning for PDFs"
	case "resolving":
		return "Resolving metadata"
	case "enriching":
		return "Generating summaries and tags"
	case "idle":
		return "Watching for changes"
	default:
		return phase
	}
}
