// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_WriteCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(root, nil)

	path, err := repo.Write("authors/smith/smith2024.md", []byte("# Smith 2024\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "authors/smith/smith2024.md"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Smith 2024\n", string(got))
}

func TestRepository_WriteLeavesNoTempFilesBehind(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(root, nil)

	_, err := repo.Write("note.md", []byte("content"))
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "note.md", entries[0].Name())
}

func TestRepository_Read(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(root, nil)

	content, err := Render(baseContext())
	require.NoError(t, err)
	path, err := repo.Write("vaswani2017.md", content)
	require.NoError(t, err)

	raw, ctx, err := repo.Read(path)
	require.NoError(t, err)
	assert.Equal(t, content, raw)
	assert.Equal(t, "vaswani2017", ctx.Citekey)
}

func TestRepository_BuildCitekeyIndexAndFind(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(root, nil)

	content, err := Render(baseContext())
	require.NoError(t, err)
	path, err := repo.Write("authors/vaswani2017.md", content)
	require.NoError(t, err)

	_, ok := repo.FindByCitekey("vaswani2017")
	assert.False(t, ok, "index should be empty before BuildCitekeyIndex")

	require.NoError(t, repo.BuildCitekeyIndex())

	got, ok := repo.FindByCitekey("vaswani2017")
	require.True(t, ok)
	assert.Equal(t, path, got)
}

func TestRepository_BuildCitekeyIndexSkipsMalformedNotes(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(root, nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.md"), []byte("---\nno closing delimiter\n"), 0o644))

	good, err := Render(baseContext())
	require.NoError(t, err)
	_, err = repo.Write("good.md", good)
	require.NoError(t, err)

	require.NoError(t, repo.BuildCitekeyIndex())

	_, ok := repo.FindByCitekey("vaswani2017")
	assert.True(t, ok)
}

func TestRepository_BuildCitekeyIndexOnMissingRootIsNotError(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	assert.NoError(t, repo.BuildCitekeyIndex())
}

func TestRepository_AddToIndex(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	repo.AddToIndex("newkey2026", "/path/to/newkey2026.md")

	got, ok := repo.FindByCitekey("newkey2026")
	require.True(t, ok)
	assert.Equal(t, "/path/to/newkey2026.md", got)
}
