// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config builds zotomatic's immutable runtime configuration: a
// YAML file merged with defaults, then overridden by ZOTOMATIC_<SETTING>
// environment variables. The resulting Config is constructed once and
// passed explicitly into every component constructor — nothing reads a
// process-wide singleton from inside the main loop.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	WatchPath string `yaml:"watch_path"`
	NotesPath string `yaml:"notes_path"`
	StateDir  string `yaml:"state_dir"`

	Resolver ResolverConfig `yaml:"resolver"`
	LLM      LLMConfig      `yaml:"llm"`
	Usage    UsageConfig    `yaml:"usage"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`

	MetricsAddr string `yaml:"metrics_addr"`
}

type ResolverConfig struct {
	ZoteroBaseURL     string        `yaml:"zotero_base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type LLMConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	SummaryMode       string  `yaml:"summary_mode"`
	SummariesEnabled  bool    `yaml:"summaries_enabled"`
	TagsEnabled       bool    `yaml:"tags_enabled"`
	TagLimit          int     `yaml:"tag_limit"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type UsageConfig struct {
	DailyLimit int `yaml:"daily_limit"`
}

type QueueConfig struct {
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BatchLimit   int           `yaml:"batch_limit"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the baseline configuration before file or
// environment overrides are applied (spec §4.8 defaults, §4.5).
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		WatchPath: filepath.Join(home, "Zotero", "storage"),
		NotesPath: filepath.Join(home, "Zotero", "notes"),
		StateDir:  filepath.Join(home, ".zotomatic"),
		Resolver: ResolverConfig{
			ZoteroBaseURL:     "http://127.0.0.1:23119",
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: 4,
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			SummaryMode:       "standard",
			SummariesEnabled:  false,
			TagsEnabled:       false,
			TagLimit:          5,
			RequestsPerSecond: 2,
		},
		Usage: UsageConfig{DailyLimit: 0},
		Queue: QueueConfig{
			BaseDelay:    5 * time.Second,
			MaxDelay:     60 * time.Second,
			MaxAttempts:  10,
			BatchLimit:   50,
			TickInterval: 3 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configPath (if it exists), applies it over the defaults,
// then applies ZOTOMATIC_<SETTING> environment overrides.
func Load(configPath string) (*Config, error) {
	return LoadWithEnv(configPath, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup, for tests.
func LoadWithEnv(configPath string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperrors.NewConfigError(
					"Cannot parse the configuration file",
					err.Error(),
					fmt.Sprintf("Check the YAML syntax in %s", configPath),
					err,
				)
			}
		case os.IsNotExist(err):
			// Missing config file is not an error; defaults apply.
		default:
			return nil, apperrors.NewConfigError(
				"Cannot read the configuration file",
				err.Error(),
				"",
				err,
			)
		}
	}

	applyEnvOverrides(cfg, getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WatchPath == "" {
		return apperrors.NewConfigError(
			"watch_path is required",
			"",
			"Set watch_path in the config file or ZOTOMATIC_WATCH_PATH",
			nil,
		)
	}
	if c.NotesPath == "" {
		return apperrors.NewConfigError(
			"notes_path is required",
			"",
			"Set notes_path in the config file or ZOTOMATIC_NOTES_PATH",
			nil,
		)
	}
	return nil
}

// applyEnvOverrides implements spec §6: "any ZOTOMATIC_<SETTING_UPPER>
// overrides the corresponding configuration key at runtime."
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	setString(&cfg.WatchPath, getenv("ZOTOMATIC_WATCH_PATH"))
	setString(&cfg.NotesPath, getenv("ZOTOMATIC_NOTES_PATH"))
	setString(&cfg.StateDir, getenv("ZOTOMATIC_STATE_DIR"))
	setString(&cfg.MetricsAddr, getenv("ZOTOMATIC_METRICS_ADDR"))

	setString(&cfg.Resolver.ZoteroBaseURL, getenv("ZOTOMATIC_RESOLVER_ZOTERO_BASE_URL"))
	setDuration(&cfg.Resolver.RequestTimeout, getenv("ZOTOMATIC_RESOLVER_REQUEST_TIMEOUT"))
	setFloat(&cfg.Resolver.RequestsPerSecond, getenv("ZOTOMATIC_RESOLVER_REQUESTS_PER_SECOND"))

	setBool(&cfg.LLM.Enabled, getenv("ZOTOMATIC_LLM_ENABLED"))
	setBool(&cfg.LLM.SummariesEnabled, getenv("ZOTOMATIC_LLM_SUMMARIES_ENABLED"))
	setBool(&cfg.LLM.TagsEnabled, getenv("ZOTOMATIC_LLM_TAGS_ENABLED"))
	setString(&cfg.LLM.Provider, getenv("ZOTOMATIC_LLM_PROVIDER"))
	setString(&cfg.LLM.BaseURL, getenv("ZOTOMATIC_LLM_BASE_URL"))
	setString(&cfg.LLM.APIKey, getenv("ZOTOMATIC_LLM_API_KEY"))
	setString(&cfg.LLM.Model, getenv("ZOTOMATIC_LLM_MODEL"))
	setString(&cfg.LLM.SummaryMode, getenv("ZOTOMATIC_LLM_SUMMARY_MODE"))
	setInt(&cfg.LLM.TagLimit, getenv("ZOTOMATIC_LLM_TAG_LIMIT"))
	setFloat(&cfg.LLM.RequestsPerSecond, getenv("ZOTOMATIC_LLM_REQUESTS_PER_SECOND"))

	setInt(&cfg.Usage.DailyLimit, getenv("ZOTOMATIC_USAGE_DAILY_LIMIT"))

	setDuration(&cfg.Queue.BaseDelay, getenv("ZOTOMATIC_QUEUE_BASE_DELAY"))
	setDuration(&cfg.Queue.MaxDelay, getenv("ZOTOMATIC_QUEUE_MAX_DELAY"))
	setInt(&cfg.Queue.MaxAttempts, getenv("ZOTOMATIC_QUEUE_MAX_ATTEMPTS"))
	setInt(&cfg.Queue.BatchLimit, getenv("ZOTOMATIC_QUEUE_BATCH_LIMIT"))
	setDuration(&cfg.Queue.TickInterval, getenv("ZOTOMATIC_QUEUE_TICK_INTERVAL"))

	setString(&cfg.Log.Level, getenv("ZOTOMATIC_LOG_LEVEL"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v string) {
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func setInt(dst *int, v string) {
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, v string) {
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

// DefaultConfigPath mirrors the teacher's XDG-aware lookup.
func DefaultConfigPath(getenv func(string) string) string {
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zotomatic", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "zotomatic", "config.yaml")
}
