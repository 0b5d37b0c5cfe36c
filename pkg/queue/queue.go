// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package queue implements the pending retry queue (spec C6) and its
// periodic processor (spec C8).
package queue

import (
	"context"
	"time"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/pkg/storage"
)

// Queue is a thin, cache-free wrapper over storage.Backend's pending
// table (spec §4.6). Retry policy does not live here; see Processor.
type Queue struct {
	store storage.Backend
}

func New(store storage.Backend) *Queue {
	return &Queue{store: store}
}

// Enqueue adds path to the pending queue; idempotent.
func (q *Queue) Enqueue(ctx context.Context, path string) error {
	if err := q.store.Enqueue(ctx, path, time.Now()); err != nil {
		return apperrors.NewStorageError(
			"Cannot enqueue a pending PDF",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

// GetDue returns up to limit entries whose next attempt has come due.
func (q *Queue) GetDue(ctx context.Context, limit int) ([]storage.PendingEntry, error) {
	entries, err := q.store.GetDue(ctx, time.Now(), limit)
	if err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot read the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	return entries, nil
}

// UpdateAttempt is a pass-through to storage.Backend.
func (q *Queue) UpdateAttempt(ctx context.Context, path string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	if err := q.store.UpdateAttempt(ctx, path, attemptCount, nextAttemptAt, lastError); err != nil {
		return apperrors.NewStorageError(
			"Cannot update a pending queue entry",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

// Resolve removes path from the pending queue.
func (q *Queue) Resolve(ctx context.Context, path string) error {
	if err := q.store.Resolve(ctx, path); err != nil {
		return apperrors.NewStorageError(
			"Cannot remove a pending queue entry",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

// CountPending returns the number of rows currently queued.
func (q *Queue) CountPending(ctx context.Context) (int, error) {
	n, err := q.store.CountPending(ctx)
	if err != nil {
		return 0, apperrors.NewStorageError(
			"Cannot count the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	return n, nil
}

// ListPending returns up to limit queued entries for reporting.
func (q *Queue) ListPending(ctx context.Context, limit int) ([]storage.PendingEntry, error) {
	entries, err := q.store.ListPending(ctx, limit)
	if err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot list the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	return entries, nil
}
