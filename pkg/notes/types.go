// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package notes

// SummaryStatus and TagStatus values (spec §3).
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// BuilderContext is the immutable input to Render and the decoded view
// of an existing note's frontmatter consulted by the note workflow.
type BuilderContext struct {
	Title   string
	Citekey string
	Year    string
	Authors []string
	Venue   string
	DOI     string
	URL     string
	PDFPath string
	Abstract   string
	Highlights []string

	// Tags is the metadata resolver's tag list; GeneratedTags is C4's.
	Tags          []string
	GeneratedTags []string

	GeneratedSummary string

	SummaryStatus string // "pending" | "done"
	SummaryMode   string // "quick" | "standard" | "deep" | ""
	TagStatus     string // "pending" | "done"

	// LastUpdated is ISO-8601 UTC, set by the workflow just before render.
	LastUpdated string
}

// frontmatter field names, matching spec §3 exactly.
const (
	fieldCitekey       = "citekey"
	fieldPDFLocal      = "pdf_local"
	fieldTags          = "tags"
	fieldSummaryStatus = "zotomatic_summary_status"
	fieldSummaryMode   = "zotomatic_summary_mode"
	fieldTagStatus     = "zotomatic_tag_status"
	fieldLastUpdated   = "zotomatic_last_updated"
)
