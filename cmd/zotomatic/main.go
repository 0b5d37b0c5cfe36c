// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the zotomatic CLI.
//
// Usage:
//
//	zotomatic scan --once              Process everything currently pending, then exit
//	zotomatic scan --watch             Scan, then stay resident watching for new PDFs
//	zotomatic scan --path <pdf>...     Process specific PDFs directly, bypassing the watcher
//	zotomatic init                     Create a starter configuration file
//	zotomatic version                  Show version and exit
package main

import (
	"flag"
	"fmt"
	"os"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the output flags (--json, --quiet, --no-color) that
// a subcommand parses after its name.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	flag.Usage = printUsage

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(int(apperrors.ExitInput))
	}

	if args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}
	if args[0] == "--version" {
		runVersion(nil)
		return
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "scan":
		runScan(cmdArgs)
	case "init":
		runInit(cmdArgs)
	case "version":
		runVersion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(apperrors.ExitInput)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `zotomatic - keep a Markdown note tree synchronized with your PDF library

Usage:
  zotomatic <command> [options]

Commands:
  scan          Resolve PDFs into notes (--once, --watch, or --path)
  init          Create a starter ~/.zotomatic/config.yaml
  version       Show version and exit

Global Options:
  --config      Path to config.yaml (default: ~/.zotomatic/config.yaml)
  --json        Machine-readable output where supported
  -q, --quiet   Suppress progress output
  --no-color    Disable colored output

Examples:
  zotomatic init
  zotomatic scan --once
  zotomatic scan --watch
  zotomatic scan --path ~/Zotero/storage/ABCD1234/paper.pdf

Environment Variables:
  ZOTOMATIC_WATCH_PATH, ZOTOMATIC_NOTES_PATH, ZOTOMATIC_STATE_DIR, ...
  (see config.yaml keys; any key has a ZOTOMATIC_<SETTING> override)

`)
}

func warnNonFatal(msg string, globals GlobalFlags) {
	if globals.Quiet {
		return
	}
	ui.Warning(msg)
}
