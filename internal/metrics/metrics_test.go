// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersIncrement(t *testing.T) {
	m := New()
	m.NoteCreated()
	m.NoteCreated()
	m.NoteUpdated()
	m.NoteSkipped()
	m.NotePending()
	m.NoteDropped()
	m.ErrorOccurred()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.notesCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notesUpdated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notesSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notesPending))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notesDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errorsTotal))
}

func TestMetrics_LLMCallsByKindAndStatus(t *testing.T) {
	m := New()
	m.LLMCall("summary", "ok")
	m.LLMCall("summary", "ok")
	m.LLMCall("tags", "skipped")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.llmCalls.WithLabelValues("summary", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.llmCalls.WithLabelValues("tags", "skipped")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.llmCalls.WithLabelValues("tags", "error")))
}

func TestMetrics_PendingQueueDepthIsAGauge(t *testing.T) {
	m := New()
	m.SetPendingQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.pendingQueueDepth))
	m.SetPendingQueueDepth(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.pendingQueueDepth))
}

func TestServe_EmptyAddrIsNoop(t *testing.T) {
	err := Serve(context.Background(), "", New(), nil)
	require.NoError(t, err)
}

func TestServe_ShutsDownOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", New(), nil)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
