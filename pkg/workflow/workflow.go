// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package workflow implements the note workflow (spec C9): given a
// resolved PDF, it decides between creating a new note, updating an
// existing one (path drift or pending-field resume), or skipping, and
// coordinates the note repository, AI enrichment client, and usage
// ledger to do so.
package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kraklabs/zotomatic/internal/metrics"
	"github.com/kraklabs/zotomatic/pkg/llm"
	"github.com/kraklabs/zotomatic/pkg/notes"
	"github.com/kraklabs/zotomatic/pkg/resolver"
	"github.com/kraklabs/zotomatic/pkg/usage"
)

// Outcome is the result of a single Handle call (spec §4.9).
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Config wires C9's collaborators. A nil LLM disables summary/tag
// generation entirely (every status stays pending); a nil Ledger removes
// the quota gate, so calls go to the LLM without a reservation.
type Config struct {
	Notes   *notes.Repository
	LLM     *llm.Client
	Ledger  *usage.Ledger
	Metrics *metrics.Metrics

	SummariesEnabled bool
	TagsEnabled      bool
	TagLimit         int

	// SummaryMode is the configured default; SummaryModeOverride, when
	// non-empty, takes precedence for every call in this run (spec
	// §4.9 "Summary-mode override").
	SummaryMode         llm.SummaryMode
	SummaryModeOverride llm.SummaryMode

	Now func() time.Time
	Log *slog.Logger
}

// Workflow is the C9 entry point.
type Workflow struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Workflow {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{cfg: cfg, log: log}
}

// SetSummaryModeOverride sets the per-run mode override (spec §4.9
// "Summary-mode override"), taking precedence over Config.SummaryMode
// for every subsequent Handle call until cleared.
func (w *Workflow) SetSummaryModeOverride(mode llm.SummaryMode) {
	w.cfg.SummaryModeOverride = mode
}

func (w *Workflow) now() time.Time {
	if w.cfg.Now != nil {
		return w.cfg.Now()
	}
	return time.Now()
}

func (w *Workflow) effectiveMode() llm.SummaryMode {
	if w.cfg.SummaryModeOverride != "" {
		return w.cfg.SummaryModeOverride
	}
	if w.cfg.SummaryMode != "" {
		return w.cfg.SummaryMode
	}
	return llm.ModeStandard
}

// Handle implements the decision tree of spec §4.9 for one resolved PDF.
func (w *Workflow) Handle(ctx context.Context, rec *resolver.Record, pdfPath string) (Outcome, error) {
	pdfPath = filepath.Clean(pdfPath)
	base := builderContextFromRecord(rec, pdfPath)

	if rec.Citekey != "" {
		if existingPath, ok := w.cfg.Notes.FindByCitekey(rec.Citekey); ok {
			return w.handleExisting(ctx, existingPath, base)
		}
	}
	return w.handleFresh(ctx, base)
}

func (w *Workflow) handleExisting(ctx context.Context, existingPath string, base notes.BuilderContext) (Outcome, error) {
	raw, existing, err := w.cfg.Notes.Read(existingPath)
	if err != nil {
		return "", err
	}

	if existing.PDFPath != base.PDFPath {
		rewritten, err := notes.RewritePDFPath(raw, base.PDFPath)
		if err != nil {
			return "", err
		}
		if _, err := w.cfg.Notes.Write(relativeTo(w.cfg.Notes.Root(), existingPath), rewritten); err != nil {
			return "", err
		}
		return OutcomeUpdated, nil
	}

	summaryPending := existing.SummaryStatus == notes.StatusPending
	tagPending := existing.TagStatus == notes.StatusPending
	if !summaryPending && !tagPending {
		return OutcomeSkipped, nil
	}

	resume := existing
	resume.Title = nonEmptyField(base.Title, existing.Title)
	resume.Abstract = base.Abstract
	resume.Highlights = base.Highlights
	resume.Tags = base.Tags
	resume.LastUpdated = isoNow(w.now())

	changed := false
	if summaryPending && w.cfg.SummariesEnabled {
		text, status := w.maybeSummary(ctx, base)
		if status == notes.StatusDone {
			resume.GeneratedSummary = text
			changed = true
		}
		resume.SummaryStatus = status
		resume.SummaryMode = string(w.effectiveMode())
	}
	if tagPending && w.cfg.TagsEnabled {
		tags, status := w.maybeTags(ctx, base)
		if status == notes.StatusDone {
			resume.GeneratedTags = tags
			changed = true
		}
		resume.TagStatus = status
	}

	if !changed {
		return OutcomeSkipped, nil
	}

	rewritten, err := notes.RewriteStatuses(raw, resume)
	if err != nil {
		return "", err
	}
	if _, err := w.cfg.Notes.Write(relativeTo(w.cfg.Notes.Root(), existingPath), rewritten); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func (w *Workflow) handleFresh(ctx context.Context, base notes.BuilderContext) (Outcome, error) {
	base.SummaryStatus = notes.StatusPending
	base.TagStatus = notes.StatusPending

	if w.cfg.SummariesEnabled {
		text, status := w.maybeSummary(ctx, base)
		base.GeneratedSummary = text
		base.SummaryStatus = status
		base.SummaryMode = string(w.effectiveMode())
	}
	if w.cfg.TagsEnabled {
		tags, status := w.maybeTags(ctx, base)
		base.GeneratedTags = tags
		base.TagStatus = status
	}
	base.LastUpdated = isoNow(w.now())

	content, err := notes.Render(base)
	if err != nil {
		return "", err
	}

	relative := sanitizeFilename(base.Citekey) + ".md"
	path, err := w.cfg.Notes.Write(relative, content)
	if err != nil {
		return "", err
	}
	w.cfg.Notes.AddToIndex(base.Citekey, path)
	return OutcomeCreated, nil
}

// maybeSummary calls C4 gated by C5, per spec §4.9 "if summaries are
// enabled and C4 exists and C5 allows it". Any failure — disabled,
// quota exhausted, or a caught provider error — leaves status pending.
func (w *Workflow) maybeSummary(ctx context.Context, base notes.BuilderContext) (string, string) {
	if w.cfg.LLM == nil {
		return "", notes.StatusPending
	}
	if w.cfg.Ledger != nil {
		ok, err := w.cfg.Ledger.TryReserve(ctx, 1)
		if err != nil || !ok {
			w.recordLLMCall("summary", "skipped")
			return "", notes.StatusPending
		}
	}
	result := w.cfg.LLM.GenerateSummary(ctx, llm.SummaryContext{
		Mode:     w.effectiveMode(),
		PDFPath:  base.PDFPath,
		Abstract: base.Abstract,
	})
	if !result.OK {
		w.recordLLMCall("summary", "error")
		return "", notes.StatusPending
	}
	w.recordLLMCall("summary", "ok")
	return result.Text, notes.StatusDone
}

func (w *Workflow) recordLLMCall(kind, status string) {
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.LLMCall(kind, status)
	}
}

func (w *Workflow) maybeTags(ctx context.Context, base notes.BuilderContext) ([]string, string) {
	if w.cfg.LLM == nil {
		return nil, notes.StatusPending
	}
	if w.cfg.Ledger != nil {
		ok, err := w.cfg.Ledger.TryReserve(ctx, 1)
		if err != nil || !ok {
			w.recordLLMCall("tags", "skipped")
			return nil, notes.StatusPending
		}
	}
	limit := w.cfg.TagLimit
	if limit <= 0 {
		limit = 5
	}
	result := w.cfg.LLM.GenerateTags(ctx, llm.TagsContext{
		Abstract: base.Abstract,
		Limit:    limit,
	})
	if !result.OK {
		w.recordLLMCall("tags", "error")
		return nil, notes.StatusPending
	}
	w.recordLLMCall("tags", "ok")
	return result.Tags, notes.StatusDone
}

func builderContextFromRecord(rec *resolver.Record, pdfPath string) notes.BuilderContext {
	title := rec.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	}
	return notes.BuilderContext{
		Title:      title,
		Citekey:    rec.Citekey,
		Year:       rec.Year,
		Authors:    rec.Authors,
		Venue:      rec.Venue,
		DOI:        rec.DOI,
		URL:        rec.URL,
		PDFPath:    pdfPath,
		Abstract:   rec.Abstract,
		Highlights: rec.Highlights,
		Tags:       rec.Tags,
	}
}

func nonEmptyField(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func isoNow(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(citekey string) string {
	return unsafeFilenameChars.ReplaceAllString(citekey, "_")
}
