// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenState_CreatesDatabaseFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	backend, info, err := OpenState(dir, nil)
	require.NoError(t, err)
	defer backend.Close()

	assert.Equal(t, filepath.Join(dir, "zotomatic.db"), info.DBPath)
	_, err = os.Stat(info.DBPath)
	assert.NoError(t, err)
}

func TestOpenState_IsIdempotent(t *testing.T) {
	dir := t.TempDir()

	backend1, _, err := OpenState(dir, nil)
	require.NoError(t, err)
	require.NoError(t, backend1.SetMeta(context.Background(), "k", "v"))
	require.NoError(t, backend1.Close())

	backend2, _, err := OpenState(dir, nil)
	require.NoError(t, err)
	defer backend2.Close()

	v, ok, err := backend2.GetMeta(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpenState_RejectsEmptyStateDir(t *testing.T) {
	_, _, err := OpenState("", nil)
	assert.Error(t, err)
}

func TestOpenNotes_BuildsIndexFromExistingFiles(t *testing.T) {
	dir := t.TempDir()
	content := "---\ncitekey: smith2020\npdf_local: /library/smith2020.pdf\n---\n\n# Paper\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smith2020.md"), []byte(content), 0o644))

	repo, err := OpenNotes(dir, nil)
	require.NoError(t, err)

	path, ok := repo.FindByCitekey("smith2020")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "smith2020.md"), path)
}

func TestOpenNotes_MissingDirectoryIsNotAnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist-yet")
	_, err := OpenNotes(dir, nil)
	require.NoError(t, err)
}

func TestOpenNotes_RejectsEmptyPath(t *testing.T) {
	_, err := OpenNotes("", nil)
	assert.Error(t, err)
}
