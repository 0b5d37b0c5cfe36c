// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/zotomatic/pkg/llm"
	"github.com/kraklabs/zotomatic/pkg/notes"
	"github.com/kraklabs/zotomatic/pkg/resolver"
)

func newTestRepo(t *testing.T) *notes.Repository {
	t.Helper()
	return notes.NewRepository(t.TempDir(), nil)
}

func newMockLLMClient(t *testing.T, mock *llm.MockProvider) *llm.Client {
	t.Helper()
	return llm.NewClientWithProvider(mock, llm.ClientConfig{})
}

func TestWorkflow_FreshNote_CreatesWithSummaryAndTags(t *testing.T) {
	repo := newTestRepo(t)
	client := newMockLLMClient(t, &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if req.Messages[0].Content == llm.SummaryPrompts.Tags {
				return &llm.ChatResponse{Message: llm.Message{Content: "nlp, llm"}, Done: true}, nil
			}
			return &llm.ChatResponse{Message: llm.Message{Content: "a summary"}, Done: true}, nil
		},
	})

	wf := New(Config{Notes: repo, LLM: client, SummariesEnabled: true, TagsEnabled: true, TagLimit: 5})

	outcome, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "smith2020", Title: "Paper"}, "/library/smith2020.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	path, ok := repo.FindByCitekey("smith2020")
	require.True(t, ok)
	raw, ctx, err := repo.Read(path)
	require.NoError(t, err)
	assert.Equal(t, notes.StatusDone, ctx.SummaryStatus)
	assert.Equal(t, notes.StatusDone, ctx.TagStatus)
	assert.Contains(t, string(raw), "a summary")
}

func TestWorkflow_FreshNote_NoLLMLeavesStatusesPending(t *testing.T) {
	repo := newTestRepo(t)
	wf := New(Config{Notes: repo, SummariesEnabled: true, TagsEnabled: true})

	outcome, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "jones2019"}, "/library/jones2019.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	path, ok := repo.FindByCitekey("jones2019")
	require.True(t, ok)
	_, ctx, err := repo.Read(path)
	require.NoError(t, err)
	assert.Equal(t, notes.StatusPending, ctx.SummaryStatus)
	assert.Equal(t, notes.StatusPending, ctx.TagStatus)
}

func TestWorkflow_PathDrift_RewritesAndReturnsUpdated(t *testing.T) {
	repo := newTestRepo(t)
	wf := New(Config{Notes: repo})

	_, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "x2020"}, "/old/x2020.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.BuildCitekeyIndex())

	outcome, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "x2020"}, "/new/x2020.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	path, ok := repo.FindByCitekey("x2020")
	require.True(t, ok)
	_, ctx, err := repo.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "/new/x2020.pdf", ctx.PDFPath)
}

func TestWorkflow_PendingResume_RegeneratesSummary(t *testing.T) {
	repo := newTestRepo(t)
	wf := New(Config{Notes: repo})

	_, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "jones2019"}, "/library/jones2019.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.BuildCitekeyIndex())

	client := newMockLLMClient(t, &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Message: llm.Message{Content: "resumed summary"}, Done: true}, nil
		},
	})
	wf2 := New(Config{Notes: repo, LLM: client, SummariesEnabled: true})

	outcome, err := wf2.Handle(context.Background(), &resolver.Record{Citekey: "jones2019"}, "/library/jones2019.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	path, ok := repo.FindByCitekey("jones2019")
	require.True(t, ok)
	raw, ctx, err := repo.Read(path)
	require.NoError(t, err)
	assert.Equal(t, notes.StatusDone, ctx.SummaryStatus)
	assert.True(t, strings.Contains(string(raw), "resumed summary"))
}

func TestWorkflow_NoChangesYieldsSkipped(t *testing.T) {
	repo := newTestRepo(t)
	client := newMockLLMClient(t, &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Message: llm.Message{Content: "done summary"}, Done: true}, nil
		},
	})
	wf := New(Config{Notes: repo, LLM: client, SummariesEnabled: true, TagsEnabled: true, TagLimit: 5})

	_, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "done2021"}, "/library/done2021.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.BuildCitekeyIndex())

	outcome, err := wf.Handle(context.Background(), &resolver.Record{Citekey: "done2021"}, "/library/done2021.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}
