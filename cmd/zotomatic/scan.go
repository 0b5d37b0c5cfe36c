// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/zotomatic/internal/config"
	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/internal/metrics"
	"github.com/kraklabs/zotomatic/internal/output"
	"github.com/kraklabs/zotomatic/internal/ui"
	"github.com/kraklabs/zotomatic/pkg/engine"
	"github.com/kraklabs/zotomatic/pkg/llm"
)

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	once := fs.Bool("once", false, "Scan, drain the queue, then exit")
	watch := fs.Bool("watch", false, "Scan, then stay resident watching for new PDFs")
	force := fs.Bool("force", false, "Ignore the file-state dedup check during the initial scan")
	summaryMode := fs.String("summary-mode", "", "Override the configured summary mode (quick, standard, deep)")
	configPath := fs.String("config", "", "Path to config.yaml")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	jsonOut := fs.Bool("json", false, "Print the run summary as JSON")
	quiet := fs.BoolP("quiet", "q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: zotomatic scan [--once | --watch | --path PDF...] [--force] [--summary-mode MODE]

Exactly one of --once, --watch, --path (default: --once). --force is
incompatible with --path.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}

	globals := GlobalFlags{JSON: *jsonOut, Quiet: *quiet, NoColor: *noColor}
	ui.InitColors(globals.NoColor)

	paths := fs.Args()
	mode, err := resolveMode(*once, *watch, len(paths) > 0, *force)
	if err != nil {
		handleFatal(err, globals)
	}

	if *summaryMode != "" {
		switch llm.SummaryMode(*summaryMode) {
		case llm.ModeQuick, llm.ModeStandard, llm.ModeDeep:
		default:
			handleFatal(apperrors.NewInputError(
				fmt.Sprintf("Invalid --summary-mode: %s", *summaryMode),
				"",
				"Use one of: quick, standard, deep",
			), globals)
		}
	}

	path := *configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".zotomatic", "config.yaml")
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		handleFatal(err, globals)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	eng, err := engine.New(cfg, nil)
	if err != nil {
		handleFatal(err, globals)
	}
	defer func() { _ = eng.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, eng.Metrics(), nil); err != nil {
				warnNonFatal(fmt.Sprintf("metrics server stopped: %v", err), globals)
			}
		}()
	}

	opts := engine.Options{Mode: mode, Paths: paths, Force: *force}
	if *summaryMode != "" {
		opts.SummaryModeOverride = llm.SummaryMode(*summaryMode)
	}

	if !globals.Quiet {
		ui.Info(scanStartMessage(mode))
	}

	var spinnerDone chan struct{}
	if mode == engine.ModeWatch {
		spinnerDone = runLivenessSpinner(NewProgressConfig(globals), "idle")
	}

	summary, err := eng.Run(ctx, opts)

	if spinnerDone != nil {
		close(spinnerDone)
	}
	if err != nil {
		handleFatal(err, globals)
	}

	if globals.JSON {
		if err := output.JSON(summary); err != nil {
			handleFatal(apperrors.NewInternalError("Cannot encode run summary", err.Error(), "", err), globals)
		}
		return
	}
	summary.Fprint(os.Stdout)
}

func resolveMode(once, watch, hasPaths, force bool) (engine.Mode, error) {
	count := 0
	if once {
		count++
	}
	if watch {
		count++
	}
	if hasPaths {
		count++
	}
	if count > 1 {
		return 0, apperrors.NewInputError(
			"Exactly one of --once, --watch, --path may be given",
			"",
			"Pick a single run mode",
		)
	}
	if hasPaths && force {
		return 0, apperrors.NewInputError(
			"--force is incompatible with --path",
			"",
			"Drop --force when using --path",
		)
	}
	switch {
	case hasPaths:
		return engine.ModePath, nil
	case watch:
		return engine.ModeWatch, nil
	default:
		return engine.ModeOnce, nil
	}
}

func scanStartMessage(mode engine.Mode) string {
	switch mode {
	case engine.ModeWatch:
		return "Scanning, then watching for new PDFs (Ctrl-C to stop)..."
	case engine.ModePath:
		return "Processing given paths..."
	default:
		return "Scanning..."
	}
}

func handleFatal(err error, globals GlobalFlags) {
	apperrors.FatalError(err, globals.JSON)
}
