// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/pkg/resolver"
)

// ProcessorConfig tunes the backoff policy (spec §4.8 defaults).
type ProcessorConfig struct {
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	MaxAttempts        int
	BatchLimit         int
	TickInterval       time.Duration
	MaxReportedDropped int
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 3 * time.Second
	}
	if c.MaxReportedDropped <= 0 {
		c.MaxReportedDropped = 10
	}
	return c
}

// OnResolved is the orchestrator-supplied callback invoked once a
// pending PDF resolves successfully (spec §4.8 step 2d). An error
// return is treated exactly like a resolver error: the entry backs off.
type OnResolved func(ctx context.Context, path string) error

// Processor periodically drains due entries from a Queue, consults a
// resolver.Resolver, and either hands resolved paths to the caller's
// callback or schedules exponential backoff.
type Processor struct {
	cfg      ProcessorConfig
	queue    *Queue
	resolve  resolver.Resolver
	onResolved OnResolved
	log      *slog.Logger

	mu           sync.Mutex
	droppedCount int
	droppedPaths []string
}

func NewProcessor(q *Queue, res resolver.Resolver, onResolved OnResolved, cfg ProcessorConfig, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		cfg:        cfg.withDefaults(),
		queue:      q,
		resolve:    res,
		onResolved: onResolved,
		log:        log,
	}
}

// LoopIntervalSeconds exposes the configured tick interval.
func (p *Processor) LoopIntervalSeconds() float64 {
	return p.cfg.TickInterval.Seconds()
}

// DroppedCount returns the number of entries dropped past the max
// attempt ceiling across this processor's lifetime.
func (p *Processor) DroppedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.droppedCount
}

// DroppedPaths returns up to MaxReportedDropped dropped paths, for the
// orchestrator's run summary.
func (p *Processor) DroppedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.droppedPaths))
	copy(out, p.droppedPaths)
	return out
}

// RunOnceResult summarizes one tick.
type RunOnceResult struct {
	Processed int
	Dropped   int
}

// RunOnce performs exactly one tick: pull due entries (bounded by
// BatchLimit, or limit if smaller/positive), resolve each, and either
// deliver it or back it off (spec §4.8).
func (p *Processor) RunOnce(ctx context.Context, limit int) (RunOnceResult, error) {
	batch := p.cfg.BatchLimit
	if limit > 0 && limit < batch {
		batch = limit
	}

	due, err := p.queue.GetDue(ctx, batch)
	if err != nil {
		return RunOnceResult{}, err
	}

	var result RunOnceResult
	for _, entry := range due {
		droppedBefore := p.DroppedCount()
		if err := p.handlePending(ctx, entry.FilePath, entry.AttemptCount); err != nil {
			return result, err
		}
		if p.DroppedCount() > droppedBefore {
			result.Dropped++
		} else {
			result.Processed++
		}
	}
	return result, nil
}

// handlePending implements spec §4.8 step 2 for a single entry.
func (p *Processor) handlePending(ctx context.Context, path string, attemptCount int) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return p.backoff(ctx, path, attemptCount, "PDF not found")
		}
		return p.backoff(ctx, path, attemptCount, err.Error())
	}

	rec, err := p.resolve.Resolve(ctx, path)
	if err != nil {
		return p.backoff(ctx, path, attemptCount, errMessage(err))
	}
	if rec == nil {
		return p.backoff(ctx, path, attemptCount, "unresolved")
	}

	if err := p.onResolved(ctx, path); err != nil {
		return p.backoff(ctx, path, attemptCount, errMessage(err))
	}

	return p.queue.Resolve(ctx, path)
}

func (p *Processor) backoff(ctx context.Context, path string, attemptCount int, lastError string) error {
	newAttempt := attemptCount + 1
	if newAttempt > p.cfg.MaxAttempts {
		p.mu.Lock()
		p.droppedCount++
		if len(p.droppedPaths) < p.cfg.MaxReportedDropped {
			p.droppedPaths = append(p.droppedPaths, path)
		}
		p.mu.Unlock()
		p.log.Warn("queue.entry.dropped", "path", path, "attempts", attemptCount, "last_error", lastError)
		return p.queue.Resolve(ctx, path)
	}

	delay := backoffDelay(p.cfg.BaseDelay, p.cfg.MaxDelay, attemptCount)
	p.log.Info("queue.entry.backoff", "path", path, "attempt", newAttempt, "delay", delay, "last_error", lastError)
	return p.queue.UpdateAttempt(ctx, path, newAttempt, time.Now().Add(delay), lastError)
}

func backoffDelay(base, max time.Duration, attemptCount int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attemptCount))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

func errMessage(err error) string {
	if ue, ok := err.(*apperrors.UserError); ok {
		return ue.Message
	}
	return fmt.Sprintf("%v", err)
}
