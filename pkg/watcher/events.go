// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package watcher

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventLoop is the steady-state half of Run (spec §4.7 "Steady state").
func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher.fsnotify.error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err != nil {
		// File already gone (removed/renamed away); nothing to debounce.
		return
	}

	if info.IsDir() {
		if event.Op&(fsnotify.Create) != 0 {
			if err := w.addTreeRecursive(fsw, event.Name); err != nil {
				w.log.Warn("watcher.subscribe.new_dir_error", "path", event.Name, "error", err)
			}
		}
		return
	}

	if !isPDF(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.debounce(ctx, event.Name)
}

// debounce launches (at most one concurrent) stability check for path,
// delivering it via OnPDFCreated once its size has settled.
func (w *Watcher) debounce(ctx context.Context, path string) {
	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()

		if !waitForStableSize(ctx, path) {
			w.log.Warn("watcher.candidate.never_stabilized", "path", path)
			return
		}
		w.log.Info("watcher.candidate.debounced", "path", path)

		changed, err := w.considerCandidate(ctx, path)
		if err != nil {
			w.log.Warn("watcher.candidate.stat_error", "path", path, "error", err)
			return
		}
		if changed && w.cfg.OnPDFCreated != nil {
			w.cfg.OnPDFCreated(path)
		}
	}()
}

// waitForStableSize polls path's size every StabilityPollInterval until
// it is unchanged across StabilityRequiredReads consecutive reads, or
// ctx is cancelled, or the file disappears.
func waitForStableSize(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	stableReads := 0

	ticker := time.NewTicker(StabilityPollInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == lastSize {
			stableReads++
			if stableReads >= StabilityRequiredReads {
				return true
			}
		} else {
			stableReads = 1
			lastSize = info.Size()
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
