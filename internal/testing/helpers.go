// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/zotomatic/pkg/storage"
)

// SetupTestBackend opens a file-backed SQLite backend rooted in a
// directory that t.TempDir() cleans up, and registers backend.Close
// with t.Cleanup.
func SetupTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "zotomatic-test.db")
	backend, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("open test backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

// SeedFile inserts a dedup row for path with the given mtime/size, as
// if it had just been observed.
func SeedFile(t *testing.T, backend storage.Backend, path string, modTimeNs, size int64) {
	t.Helper()

	err := backend.UpsertFile(context.Background(), storage.FileState{
		FilePath:   path,
		ModTimeNs:  modTimeNs,
		Size:       size,
		LastSeenAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed file %s: %v", path, err)
	}
}

// SeedPending enqueues path into the retry queue as of now.
func SeedPending(t *testing.T, backend storage.Backend, path string, now time.Time) {
	t.Helper()

	if err := backend.Enqueue(context.Background(), path, now); err != nil {
		t.Fatalf("seed pending %s: %v", path, err)
	}
}

// SeedDirectory records a watched-root progress marker.
func SeedDirectory(t *testing.T, backend storage.Backend, path string, lastScannedAt time.Time) {
	t.Helper()

	err := backend.UpsertDirectory(context.Background(), storage.DirectoryState{
		Path:          path,
		LastScannedAt: lastScannedAt,
	})
	if err != nil {
		t.Fatalf("seed directory %s: %v", path, err)
	}
}

// SeedAttachment caches an attachment binding for path.
func SeedAttachment(t *testing.T, backend storage.Backend, path, attachmentID, parentKey string) {
	t.Helper()

	err := backend.UpsertAttachment(context.Background(), storage.AttachmentState{
		FilePath:     path,
		AttachmentID: attachmentID,
		ParentKey:    parentKey,
		CachedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("seed attachment %s: %v", path, err)
	}
}
