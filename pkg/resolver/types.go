// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package resolver implements the metadata resolver (spec C3): given an
// absolute PDF path, it returns the canonical reference-manager record
// for that file, or nil when the file is unresolved. A reachable service
// that does not know the file yields nil; an unreachable service or an
// HTTP error status yields an error instead. The pending queue
// processor's backoff policy applies in both cases.
package resolver

// Record is the canonical reference-manager metadata for a resolved
// PDF (spec §3 NoteBuilderContext source fields).
type Record struct {
	Citekey    string
	Title      string
	Authors    []string
	Year       string
	Venue      string
	DOI        string
	URL        string
	Abstract   string
	Tags       []string
	Highlights []string

	// AttachmentID and ParentKey identify the binding within the
	// reference manager, cached in storage.AttachmentState to avoid
	// re-resolving on every restart.
	AttachmentID string
	ParentKey    string
}
