// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testinghelpers "github.com/kraklabs/zotomatic/internal/testing"
	"github.com/kraklabs/zotomatic/internal/config"
	"github.com/kraklabs/zotomatic/internal/metrics"
	"github.com/kraklabs/zotomatic/pkg/notes"
	"github.com/kraklabs/zotomatic/pkg/queue"
	"github.com/kraklabs/zotomatic/pkg/resolver"
	"github.com/kraklabs/zotomatic/pkg/storage"
	"github.com/kraklabs/zotomatic/pkg/usage"
	"github.com/kraklabs/zotomatic/pkg/workflow"
)

// newTestEngine assembles an Engine by hand, bypassing New, so tests can
// swap in a resolver.MockResolver instead of hitting a real Zotero
// instance. It mirrors New's wiring in pkg/engine/engine.go.
func newTestEngine(t *testing.T, res resolver.Resolver, dailyLimit int) (*Engine, storage.Backend, *bytes.Buffer) {
	t.Helper()

	store := testinghelpers.SetupTestBackend(t)
	notesRepo := notes.NewRepository(t.TempDir(), nil)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m := metrics.New()
	ledger := usage.NewLedger(store, usage.Config{DailyLimit: dailyLimit})
	q := queue.New(store)
	wf := workflow.New(workflow.Config{
		Notes:            notesRepo,
		Ledger:           ledger,
		Metrics:          m,
		SummariesEnabled: false,
		TagsEnabled:      false,
		Log:              log,
	})

	var out bytes.Buffer
	e := &Engine{
		cfg: &config.Config{
			Queue: config.QueueConfig{
				BaseDelay:   time.Millisecond,
				MaxDelay:    10 * time.Millisecond,
				MaxAttempts: 3,
				BatchLimit:  50,
			},
		},
		log:      log,
		store:    store,
		notes:    notesRepo,
		resolve:  res,
		ledger:   ledger,
		queue:    q,
		workflow: wf,
		metrics:  m,
		out:      &out,
	}
	e.processor = queue.NewProcessor(q, res, e.onResolved, queue.ProcessorConfig{
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		MaxAttempts: 3,
		BatchLimit:  50,
	}, log)

	return e, store, &out
}

func writeTempPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fixture"), 0o644))
	return path
}

func TestEngine_RunPath_CreatesNote(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "paper.pdf")

	res := &resolver.MockResolver{Records: map[string]*resolver.Record{
		pdfPath: {Citekey: "smith2020", Title: "A Paper", Authors: []string{"Smith, J."}, Year: 2020},
	}}
	e, _, out := newTestEngine(t, res, 0)

	summary, err := e.Run(context.Background(), Options{Mode: ModePath, Paths: []string{pdfPath}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Errors)
	assert.Contains(t, out.String(), "Note created:")
}

func TestEngine_RunPath_PendingWhenUnresolved(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "unknown.pdf")

	res := &resolver.MockResolver{} // no records, ResolveFunc nil -> Resolve returns nil, nil
	e, _, _ := newTestEngine(t, res, 0)

	summary, err := e.Run(context.Background(), Options{Mode: ModePath, Paths: []string{pdfPath}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 0, summary.Created)
}

func TestEngine_RunPath_FailsBeforeAnyWork_WhenPathMissing(t *testing.T) {
	dir := t.TempDir()
	existing := writeTempPDF(t, dir, "exists.pdf")
	missing := filepath.Join(dir, "missing.pdf")

	res := &resolver.MockResolver{Records: map[string]*resolver.Record{
		existing: {Citekey: "a2021"},
	}}
	e, store, out := newTestEngine(t, res, 0)

	summary, err := e.Run(context.Background(), Options{Mode: ModePath, Paths: []string{existing, missing}})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Empty(t, out.String(), "no note output should be produced before validation passes")

	count, cerr := store.CountPending(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count, "no pending rows should be written when validation fails")

	_, found := e.notes.FindByCitekey("a2021")
	assert.False(t, found, "no note should be written when validation fails")
}

func TestEngine_RunPath_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	res := &resolver.MockResolver{}
	e, _, _ := newTestEngine(t, res, 0)

	_, err := e.Run(context.Background(), Options{Mode: ModePath, Paths: []string{dir}})
	assert.Error(t, err)
}

func TestEngine_DrainSeedBuffer_MovesPathsIntoQueue(t *testing.T) {
	e, store, _ := newTestEngine(t, &resolver.MockResolver{}, 0)

	e.seedMu.Lock()
	e.seedBuffer = []string{"/a.pdf", "/b.pdf"}
	e.seedMu.Unlock()

	require.NoError(t, e.drainSeedBuffer(context.Background()))
	assert.True(t, e.seedBufferEmpty())

	n, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEngine_MaybeMarkBootSeedComplete_OnlyWhenScanFiredAndBufferEmpty(t *testing.T) {
	e, store, _ := newTestEngine(t, &resolver.MockResolver{}, 0)
	ctx := context.Background()

	e.seedMu.Lock()
	e.seedBuffer = []string{"/a.pdf"}
	e.seedMu.Unlock()

	e.maybeMarkBootSeedComplete(ctx, true)
	val, ok, err := store.GetMeta(ctx, storage.MetaBootSeedComplete)
	require.NoError(t, err)
	assert.False(t, ok || val == "1", "should not flip while the buffer is non-empty")

	e.seedMu.Lock()
	e.seedBuffer = nil
	e.seedMu.Unlock()

	e.maybeMarkBootSeedComplete(ctx, true)
	val, ok, err = store.GetMeta(ctx, storage.MetaBootSeedComplete)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", val)
}

func TestEngine_OnResolved_ProcessesQueuedEntry(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "queued.pdf")

	res := &resolver.MockResolver{Records: map[string]*resolver.Record{
		pdfPath: {Citekey: "queued2022", Title: "Queued Paper"},
	}}
	e, _, out := newTestEngine(t, res, 0)
	e.current = &Summary{}

	require.NoError(t, e.queue.Enqueue(context.Background(), pdfPath))

	result, err := e.processor.RunOnce(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, e.current.Created)
	assert.Contains(t, out.String(), "Note created:")

	_, found := e.notes.FindByCitekey("queued2022")
	assert.True(t, found)
}

func TestEngine_FinalizeQuotaNote_SetsWhenDailyLimitExhausted(t *testing.T) {
	e, _, _ := newTestEngine(t, &resolver.MockResolver{}, 2)
	ctx := context.Background()

	ok, err := e.ledger.TryReserve(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	summary := &Summary{}
	e.finalizeQuotaNote(ctx, summary)
	assert.True(t, summary.QuotaReached)
}

func TestEngine_FinalizeQuotaNote_NoLimitConfigured(t *testing.T) {
	e, _, _ := newTestEngine(t, &resolver.MockResolver{}, 0)
	summary := &Summary{}
	e.finalizeQuotaNote(context.Background(), summary)
	assert.False(t, summary.QuotaReached)
}

func TestEngine_SetOutput(t *testing.T) {
	e, _, _ := newTestEngine(t, &resolver.MockResolver{}, 0)
	var buf bytes.Buffer
	e.SetOutput(&buf)
	e.tally(&Summary{}, workflow.OutcomeCreated, "/x.pdf")
	assert.Contains(t, buf.String(), "Note created: /x.pdf")
}
