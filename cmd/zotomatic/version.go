// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/zotomatic/internal/output"
)

// versionInfo is the --json shape for the version command.
type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
}

func runVersion(args []string) {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return
	}

	info := versionInfo{Version: version, Commit: commit, Built: date}

	if *jsonOut {
		_ = output.JSON(info)
		return
	}
	fmt.Printf("zotomatic version %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built: %s\n", info.Built)
}
