// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/zotomatic/internal/config"
	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force          bool
	nonInteractive bool
	watchPath      string
	notesPath      string
	stateDir       string
	llmProvider    string
	llmBaseURL     string
	llmAPIKey      string
}

func runInit(args []string) {
	flags := parseInitFlags(args)

	home, err := os.UserHomeDir()
	if err != nil {
		handleFatal(apperrors.NewInternalError("Cannot determine home directory", err.Error(), "", err), GlobalFlags{})
	}
	configPath := filepath.Join(home, ".zotomatic", "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !flags.force {
		handleFatal(apperrors.NewInputError(
			fmt.Sprintf("%s already exists", configPath),
			"",
			"Use --force to overwrite",
		), GlobalFlags{})
	}

	cfg := buildInitConfig(home, flags)

	if !flags.nonInteractive {
		runInteractiveInit(bufio.NewReader(os.Stdin), cfg)
	}

	saveInitConfig(configPath, cfg)
	printInitNextSteps(configPath)
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite an existing configuration")
	fs.BoolVar(&f.nonInteractive, "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.watchPath, "watch-path", "", "Directory to watch for PDFs")
	fs.StringVar(&f.notesPath, "notes-path", "", "Directory to write Markdown notes into")
	fs.StringVar(&f.stateDir, "state-dir", "", "Directory for the state database")
	fs.StringVar(&f.llmProvider, "llm-provider", "", "LLM provider (ollama, openai, anthropic, mock)")
	fs.StringVar(&f.llmBaseURL, "llm-base-url", "", "LLM API base URL")
	fs.StringVar(&f.llmAPIKey, "llm-api-key", "", "LLM API key (optional for local models)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: zotomatic init [options]

Creates ~/.zotomatic/config.yaml.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}
	return f
}

func buildInitConfig(home string, f initFlags) *config.Config {
	cfg := config.Default()
	if f.watchPath != "" {
		cfg.WatchPath = f.watchPath
	}
	if f.notesPath != "" {
		cfg.NotesPath = f.notesPath
	}
	if f.stateDir != "" {
		cfg.StateDir = f.stateDir
	}
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmBaseURL != "" {
		cfg.LLM.Enabled = true
		cfg.LLM.SummariesEnabled = true
		cfg.LLM.TagsEnabled = true
		cfg.LLM.BaseURL = f.llmBaseURL
	}
	if f.llmAPIKey != "" {
		cfg.LLM.APIKey = f.llmAPIKey
	}
	return cfg
}

func runInteractiveInit(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("zotomatic configuration")
	fmt.Println("=======================")
	fmt.Println()

	cfg.WatchPath = prompt(reader, "Zotero storage directory to watch", cfg.WatchPath)
	cfg.NotesPath = prompt(reader, "Notes directory", cfg.NotesPath)
	cfg.StateDir = prompt(reader, "State directory", cfg.StateDir)

	fmt.Println()
	fmt.Println("LLM enrichment (summaries and tags). Leave the URL empty to skip.")
	llmURL := prompt(reader, "LLM API base URL", cfg.LLM.BaseURL)
	if llmURL != "" {
		cfg.LLM.Enabled = true
		cfg.LLM.SummariesEnabled = true
		cfg.LLM.TagsEnabled = true
		cfg.LLM.BaseURL = llmURL
		cfg.LLM.Provider = prompt(reader, "LLM provider", cfg.LLM.Provider)
		cfg.LLM.Model = prompt(reader, "LLM model", cfg.LLM.Model)
		cfg.LLM.APIKey = prompt(reader, "LLM API key (optional)", cfg.LLM.APIKey)
	}
	fmt.Println()
}

func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func saveInitConfig(configPath string, cfg *config.Config) {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		handleFatal(apperrors.NewPermissionError(
			fmt.Sprintf("Cannot create %s", filepath.Dir(configPath)),
			err.Error(),
			"",
			err,
		), GlobalFlags{})
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		handleFatal(apperrors.NewInternalError("Cannot encode configuration", err.Error(), "", err), GlobalFlags{})
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		handleFatal(apperrors.NewPermissionError(
			fmt.Sprintf("Cannot write %s", configPath),
			err.Error(),
			"",
			err,
		), GlobalFlags{})
	}
	fmt.Printf("Created %s\n", configPath)
}

func printInitNextSteps(configPath string) {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Review %s\n", configPath)
	fmt.Println("  2. Run 'zotomatic scan --once' for a first pass")
	fmt.Println("  3. Run 'zotomatic scan --watch' to keep notes in sync")
}
