// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/zotomatic/pkg/storage"
)

func newTestStore(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

func TestWatcher_InitialScanFindsExistingPDFs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.pdf"), []byte("%PDF"), 0o644))

	store := newTestStore(t)
	found := &collector{}
	scanDone := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := New(Config{
		Root:                  root,
		Store:                 store,
		OnPDFCreated:          found.add,
		OnInitialScanComplete: func() { close(scanDone) },
	})

	go func() { _ = w.Run(ctx) }()

	select {
	case <-scanDone:
	case <-time.After(time.Second):
		t.Fatal("initial scan never completed")
	}

	assert.Equal(t, []string{filepath.Join(root, "a.pdf")}, found.snapshot())
}

func TestWatcher_InitialScanSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	store := newTestStore(t)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(context.Background(), storage.FileState{
		FilePath:  path,
		ModTimeNs: info.ModTime().UnixNano(),
		Size:      info.Size(),
	}))

	found := &collector{}
	scanDone := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := New(Config{Root: root, Store: store, OnPDFCreated: found.add, OnInitialScanComplete: func() { close(scanDone) }})
	go func() { _ = w.Run(ctx) }()

	select {
	case <-scanDone:
	case <-time.After(time.Second):
		t.Fatal("initial scan never completed")
	}
	assert.Empty(t, found.snapshot())
}

func TestWatcher_ForceRedeliversUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	store := newTestStore(t)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(context.Background(), storage.FileState{
		FilePath:  path,
		ModTimeNs: info.ModTime().UnixNano(),
		Size:      info.Size(),
	}))

	found := &collector{}
	scanDone := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := New(Config{Root: root, Store: store, Force: true, OnPDFCreated: found.add, OnInitialScanComplete: func() { close(scanDone) }})
	go func() { _ = w.Run(ctx) }()

	select {
	case <-scanDone:
	case <-time.After(time.Second):
		t.Fatal("initial scan never completed")
	}
	assert.Equal(t, []string{path}, found.snapshot())
}

func TestWatcher_SteadyStateDeliversAfterStabilityWindow(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t)
	found := &collector{}
	scanDone := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w := New(Config{Root: root, Store: store, OnPDFCreated: found.add, OnInitialScanComplete: func() { close(scanDone) }})
	go func() { _ = w.Run(ctx) }()

	select {
	case <-scanDone:
	case <-time.After(time.Second):
		t.Fatal("initial scan never completed")
	}

	path := filepath.Join(root, "new.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 content"), 0o644))

	require.Eventually(t, func() bool {
		for _, p := range found.snapshot() {
			if p == path {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond, "expected the new PDF to be delivered after its stability window")
}
