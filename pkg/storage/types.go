// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import "time"

// FileState is the dedup row for a single absolute PDF path.
//
// A file is unchanged since the last observation iff both ModTimeNs and
// Size still match the stored row (§3 invariant).
type FileState struct {
	FilePath   string
	ModTimeNs  int64
	Size       int64
	SHA1       string // optional, currently unused for equality
	LastSeenAt time.Time
}

// PendingEntry is one row of the retry queue (§3).
type PendingEntry struct {
	FilePath      string
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	EnqueuedAt    time.Time
}

// DirectoryState is an opaque per-directory progress marker that makes
// the initial scan incremental across restarts.
type DirectoryState struct {
	Path          string
	LastScannedAt time.Time
}

// AttachmentState binds a PDF path to an external reference-manager
// attachment/parent key, cached to avoid re-resolving on every boot.
type AttachmentState struct {
	FilePath     string
	AttachmentID string
	ParentKey    string
	CachedAt     time.Time
}
