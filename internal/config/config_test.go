// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestLoadWithEnv_DefaultsWhenNoFileOrEnv(t *testing.T) {
	cfg, err := LoadWithEnv("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Usage.DailyLimit)
	assert.Equal(t, 5*time.Second, cfg.Queue.BaseDelay)
	assert.Equal(t, 10, cfg.Queue.MaxAttempts)
}

func TestLoadWithEnv_MissingConfigFileIsNotAnError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	_, err := LoadWithEnv(missing, noEnv)
	require.NoError(t, err)
}

func TestLoadWithEnv_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "watch_path: /custom/watch\nnotes_path: /custom/notes\nusage:\n  daily_limit: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "/custom/watch", cfg.WatchPath)
	assert.Equal(t, "/custom/notes", cfg.NotesPath)
	assert.Equal(t, 50, cfg.Usage.DailyLimit)
}

func TestLoadWithEnv_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch_path: /from/file\nnotes_path: /notes\n"), 0o644))

	env := map[string]string{
		"ZOTOMATIC_WATCH_PATH":         "/from/env",
		"ZOTOMATIC_USAGE_DAILY_LIMIT":  "25",
		"ZOTOMATIC_QUEUE_MAX_ATTEMPTS": "3",
	}
	cfg, err := LoadWithEnv(path, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.WatchPath)
	assert.Equal(t, 25, cfg.Usage.DailyLimit)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
}

func TestLoadWithEnv_InvalidYAMLIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := LoadWithEnv(path, noEnv)
	require.Error(t, err)
}

func TestLoadWithEnv_RejectsEmptyWatchPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch_path: \"\"\nnotes_path: /notes\n"), 0o644))

	_, err := LoadWithEnv(path, noEnv)
	require.Error(t, err)
}
