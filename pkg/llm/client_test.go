// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

func newMockClient(t *testing.T, mock *MockProvider) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{Provider: ProviderConfig{Type: "mock"}})
	require.NoError(t, err)
	if mock != nil {
		c.provider = mock
	}
	return c
}

func TestNewClient_ConstructionErrorIsLLMConfigError(t *testing.T) {
	_, err := NewClient(ClientConfig{Provider: ProviderConfig{Type: "bogus-provider"}})
	require.Error(t, err)

	var ue *apperrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, apperrors.ExitConfig, ue.ExitCode)
}

func TestClient_GenerateSummary_Quick(t *testing.T) {
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Message: Message{Role: "assistant", Content: "short summary"}, Done: true}, nil
		},
	})

	result := c.GenerateSummary(context.Background(), SummaryContext{Mode: ModeQuick, Abstract: "paper abstract"})
	assert.True(t, result.OK)
	assert.Equal(t, "short summary", result.Text)
}

func TestClient_GenerateSummary_ProviderErrorYieldsNotOK(t *testing.T) {
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			return nil, fmt.Errorf("boom")
		},
	})

	result := c.GenerateSummary(context.Background(), SummaryContext{Mode: ModeQuick, Abstract: "x"})
	assert.False(t, result.OK)
	assert.Empty(t, result.Text)
}

func TestClient_GenerateSummary_DeepFallsBackToStandardWhenNoText(t *testing.T) {
	var calls int
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			calls++
			return &ChatResponse{Message: Message{Role: "assistant", Content: "standard summary"}, Done: true}, nil
		},
	})

	result := c.GenerateSummary(context.Background(), SummaryContext{
		Mode:     ModeDeep,
		Abstract: "abstract",
		// ExtractedText left empty: chunking yields nothing, must fall
		// back to standard per spec §4.4.
	})
	assert.True(t, result.OK)
	assert.Equal(t, "standard summary", result.Text)
	assert.Equal(t, 1, calls)
}

func TestClient_GenerateSummary_DeepMapReduce(t *testing.T) {
	var seenPrompts []string
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			seenPrompts = append(seenPrompts, req.Messages[0].Content)
			if req.Messages[0].Content == SummaryPrompts.Reduce {
				return &ChatResponse{Message: Message{Role: "assistant", Content: "final summary"}, Done: true}, nil
			}
			return &ChatResponse{Message: Message{Role: "assistant", Content: "chunk summary"}, Done: true}, nil
		},
	})

	longText := ""
	for i := 0; i < 5; i++ {
		longText += fmt.Sprintf("paragraph %d with some content to fill space.\n\n", i)
	}

	result := c.GenerateSummary(context.Background(), SummaryContext{
		Mode:          ModeDeep,
		Abstract:      "abstract",
		ExtractedText: longText,
	})
	assert.True(t, result.OK)
	assert.Equal(t, "final summary", result.Text)
	assert.Contains(t, seenPrompts, SummaryPrompts.Reduce)
}

func TestClient_GenerateTags_DedupesPreservingOrder(t *testing.T) {
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Message: Message{Role: "assistant", Content: "nlp, nlp, transformers, NLP"}, Done: true}, nil
		},
	})

	result := c.GenerateTags(context.Background(), TagsContext{Abstract: "x", Limit: 5})
	assert.True(t, result.OK)
	assert.Equal(t, []string{"nlp", "transformers"}, result.Tags)
}

func TestClient_GenerateTags_RespectsLimit(t *testing.T) {
	c := newMockClient(t, &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Message: Message{Role: "assistant", Content: "a, b, c, d"}, Done: true}, nil
		},
	})

	result := c.GenerateTags(context.Background(), TagsContext{Abstract: "x", Limit: 2})
	assert.True(t, result.OK)
	assert.Len(t, result.Tags, 2)
}

func TestClient_Close(t *testing.T) {
	c := newMockClient(t, nil)
	assert.NoError(t, c.Close())
}
