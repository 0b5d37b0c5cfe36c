// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/pkg/llm"
	"github.com/kraklabs/zotomatic/pkg/storage"
	"github.com/kraklabs/zotomatic/pkg/watcher"
	"github.com/kraklabs/zotomatic/pkg/workflow"
)

// Mode selects one of the three run modes described in spec §6.
type Mode int

const (
	ModeOnce Mode = iota
	ModeWatch
	ModePath
)

// Options configures a single Run call.
type Options struct {
	Mode  Mode
	Paths []string // ModePath only

	Force               bool
	SummaryModeOverride llm.SummaryMode
}

// Run executes one scan per opts.Mode and returns the accumulated
// summary. For ModeOnce and ModeWatch, ctx cancellation is the normal
// shutdown path; for ModePath, Run returns as soon as every path is
// processed (or a validation error on any path aborts before work
// starts).
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.SummaryModeOverride != "" {
		e.workflow.SetSummaryModeOverride(opts.SummaryModeOverride)
	}

	if opts.Mode == ModePath {
		return e.runPath(ctx, opts)
	}
	return e.runWatch(ctx, opts)
}

// runPath implements the `--path` bypass (spec §6, scenario S6): every
// path is validated up front, and nothing is written if any is missing
// or not a regular file.
func (e *Engine) runPath(ctx context.Context, opts Options) (*Summary, error) {
	abs := make([]string, len(opts.Paths))
	for i, p := range opts.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, apperrors.NewInputError(
				fmt.Sprintf("Path does not exist: %s", p),
				err.Error(),
				"",
			)
		}
		if !info.Mode().IsRegular() {
			return nil, apperrors.NewInputError(
				fmt.Sprintf("Path is not a regular file: %s", p),
				"",
				"",
			)
		}
		a, err := filepath.Abs(p)
		if err != nil {
			a = p
		}
		abs[i] = a
	}

	summary := &Summary{}
	e.current = summary

	for _, path := range abs {
		rec, err := e.resolve.Resolve(ctx, path)
		if err != nil {
			e.recordError(summary, path)
			continue
		}
		if rec == nil {
			summary.Pending++
			summary.PendingPaths = append(summary.PendingPaths, path)
			e.metrics.NotePending()
			continue
		}
		outcome, err := e.workflow.Handle(ctx, rec, path)
		if err != nil {
			e.recordError(summary, path)
			continue
		}
		e.tally(summary, outcome, path)
	}

	e.finalizeQuotaNote(ctx, summary)
	return summary, nil
}

// runWatch drives ModeOnce and ModeWatch: start the watcher, drain the
// seed buffer into the pending queue each tick, run the processor, and
// for ModeOnce, exit once the initial scan has fired, the seed buffer
// is empty, and the pending queue is empty (spec §4.10, §6).
func (e *Engine) runWatch(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}
	e.current = summary

	if err := e.store.SetMeta(ctx, storage.MetaBootSeedComplete, "0"); err != nil {
		return summary, err
	}
	e.seedMu.Lock()
	e.seedBuffer = nil
	e.scanDone = false
	e.seedMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var scanFired atomic.Bool
	w := watcher.New(watcher.Config{
		Root:  e.cfg.WatchPath,
		Store: e.store,
		Force: opts.Force,
		Logger: e.log,
		OnPDFCreated: func(path string) {
			e.onPDFCreated(runCtx, path)
		},
		OnInitialScanComplete: func() {
			scanFired.Store(true)
		},
	})

	watcherErrCh := make(chan error, 1)
	go func() { watcherErrCh <- w.Run(runCtx) }()

	interval := e.processor.LoopIntervalSeconds()
	if interval <= 0 {
		interval = 3
	}
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-watcherErrCh
			e.finalizeRun(ctx, summary)
			return summary, nil

		case err := <-watcherErrCh:
			e.finalizeRun(ctx, summary)
			if err != nil {
				return summary, err
			}
			return summary, nil

		case <-ticker.C:
			if err := e.drainSeedBuffer(runCtx); err != nil {
				e.log.Warn("engine.seed_drain.error", "error", err)
			}
			e.maybeMarkBootSeedComplete(runCtx, scanFired.Load())

			if _, err := e.processor.RunOnce(runCtx, 0); err != nil {
				e.log.Warn("engine.processor.error", "error", err)
			}

			pending, _ := e.queue.CountPending(runCtx)
			e.metrics.SetPendingQueueDepth(pending)

			if opts.Mode == ModeOnce && scanFired.Load() && e.seedBufferEmpty() && pending == 0 {
				cancel()
				<-watcherErrCh
				e.finalizeRun(ctx, summary)
				return summary, nil
			}
		}
	}
}

func (e *Engine) onPDFCreated(ctx context.Context, path string) {
	e.seedMu.Lock()
	if !e.scanDone {
		e.seedBuffer = append(e.seedBuffer, path)
		e.seedMu.Unlock()
		return
	}
	e.seedMu.Unlock()

	if err := e.queue.Enqueue(ctx, path); err != nil {
		e.log.Warn("engine.enqueue.error", "path", path, "error", err)
		return
	}
	e.metrics.NotePending()
}

// drainSeedBuffer moves up to batch_limit paths from the volatile seed
// buffer into the pending queue (spec §4.10).
func (e *Engine) drainSeedBuffer(ctx context.Context) error {
	limit := e.cfg.Queue.BatchLimit
	if limit <= 0 {
		limit = 50
	}

	e.seedMu.Lock()
	n := len(e.seedBuffer)
	if n > limit {
		n = limit
	}
	batch := append([]string(nil), e.seedBuffer[:n]...)
	e.seedBuffer = e.seedBuffer[n:]
	e.seedMu.Unlock()

	for _, path := range batch {
		if err := e.queue.Enqueue(ctx, path); err != nil {
			return err
		}
		e.metrics.NotePending()
	}
	return nil
}

func (e *Engine) seedBufferEmpty() bool {
	e.seedMu.Lock()
	defer e.seedMu.Unlock()
	return len(e.seedBuffer) == 0
}

// maybeMarkBootSeedComplete flips meta.boot_seed_complete to "1" once
// the initial scan signal has fired and the seed buffer is empty (spec
// §4.10). It is safe to call every tick; the flip happens at most once.
func (e *Engine) maybeMarkBootSeedComplete(ctx context.Context, scanFired bool) {
	e.seedMu.Lock()
	already := e.scanDone
	empty := len(e.seedBuffer) == 0
	e.seedMu.Unlock()

	if already || !scanFired || !empty {
		return
	}
	if err := e.store.SetMeta(ctx, storage.MetaBootSeedComplete, "1"); err != nil {
		e.log.Warn("engine.boot_seed_complete.error", "error", err)
		return
	}
	e.seedMu.Lock()
	e.scanDone = true
	e.seedMu.Unlock()
}

// onResolved is handed to queue.NewProcessor as the OnResolved
// callback. It re-resolves path (cheap: the resolver's attachment
// cache was already primed by the processor's own resolve check) to
// obtain the full Record the note workflow needs.
func (e *Engine) onResolved(ctx context.Context, path string) error {
	rec, err := e.resolve.Resolve(ctx, path)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("unresolved")
	}

	outcome, err := e.workflow.Handle(ctx, rec, path)
	if err != nil {
		return err
	}
	e.tally(e.current, outcome, path)
	return nil
}

func (e *Engine) tally(summary *Summary, outcome workflow.Outcome, path string) {
	if summary == nil {
		return
	}
	switch outcome {
	case workflow.OutcomeCreated:
		summary.Created++
		e.metrics.NoteCreated()
		fmt.Fprintf(e.out, "Note created: %s\n", path)
	case workflow.OutcomeUpdated:
		summary.Updated++
		e.metrics.NoteUpdated()
		fmt.Fprintf(e.out, "Note updated: %s\n", path)
	case workflow.OutcomeSkipped:
		summary.Skipped++
		e.metrics.NoteSkipped()
	}
}

func (e *Engine) recordError(summary *Summary, path string) {
	summary.Errors++
	summary.ErrorPaths = append(summary.ErrorPaths, path)
	e.metrics.ErrorOccurred()
}

// finalizeRun fills in the queue- and processor-derived fields that
// only make sense once a watch/once run has stopped ticking.
func (e *Engine) finalizeRun(ctx context.Context, summary *Summary) {
	summary.Dropped = e.processor.DroppedCount()
	summary.DroppedPaths = e.processor.DroppedPaths()

	if n, err := e.queue.CountPending(ctx); err == nil {
		summary.Pending = n
	}
	if entries, err := e.queue.ListPending(ctx, 10); err == nil {
		for _, p := range entries {
			summary.PendingPaths = append(summary.PendingPaths, p.FilePath)
		}
	}

	e.finalizeQuotaNote(ctx, summary)
}

// finalizeQuotaNote sets Summary.QuotaReached when the daily LLM quota
// (spec §4.5) has been exhausted, per scenario S5.
func (e *Engine) finalizeQuotaNote(ctx context.Context, summary *Summary) {
	limit := e.ledger.DailyLimit()
	if limit <= 0 {
		return
	}
	used, err := e.ledger.GetTotalUsed(ctx)
	if err != nil {
		return
	}
	summary.QuotaReached = used >= limit
}
