// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package usage implements the daily LLM usage ledger (spec C5): a
// calendar-date counter persisted in storage.Backend's meta table,
// consulted before every paid LLM call so a runaway scan cannot blow
// through a configured daily budget.
package usage

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/pkg/storage"
)

// Ledger tracks how many LLM calls have been made today against a
// configured daily limit. A non-positive DailyLimit disables the
// ledger: every reservation succeeds.
type Ledger struct {
	store      storage.Backend
	dailyLimit int
	now        func() time.Time
}

// Config configures a Ledger.
type Config struct {
	DailyLimit int
	// Now, if set, overrides time.Now for tests.
	Now func() time.Time
}

func NewLedger(store storage.Backend, cfg Config) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, dailyLimit: cfg.DailyLimit, now: now}
}

// DailyLimit returns the configured limit (spec §4.5 property).
func (l *Ledger) DailyLimit() int { return l.dailyLimit }

func (l *Ledger) today() string {
	return l.now().Local().Format("2006-01-02")
}

// TryReserve atomically increments today's counter by n and returns
// true iff the new total does not exceed DailyLimit. When DailyLimit is
// zero or negative the ledger is disabled and every call succeeds
// without mutating state.
func (l *Ledger) TryReserve(ctx context.Context, n int) (bool, error) {
	if l.dailyLimit <= 0 {
		return true, nil
	}
	key := storage.LLMUsageMetaKey(l.today())

	current, _, err := l.store.GetMeta(ctx, key)
	if err != nil {
		return false, apperrors.NewStorageError(
			"Cannot read today's LLM usage counter",
			err.Error(),
			"",
			err,
		)
	}
	used := parseCounter(current)
	if used+n > l.dailyLimit {
		return false, nil
	}

	total, err := l.store.AddMeta(ctx, key, n)
	if err != nil {
		return false, apperrors.NewStorageError(
			"Cannot update today's LLM usage counter",
			err.Error(),
			"",
			err,
		)
	}
	// A concurrent reserver could have pushed the total over the limit
	// between our read and our add; treat that as a failed reservation
	// rather than silently exceeding the budget.
	return total <= l.dailyLimit, nil
}

// GetTotalUsed returns today's call count.
func (l *Ledger) GetTotalUsed(ctx context.Context) (int, error) {
	current, _, err := l.store.GetMeta(ctx, storage.LLMUsageMetaKey(l.today()))
	if err != nil {
		return 0, apperrors.NewStorageError(
			"Cannot read today's LLM usage counter",
			err.Error(),
			"",
			err,
		)
	}
	return parseCounter(current), nil
}

func parseCounter(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
