// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

// SummaryMode selects the prompting strategy used by GenerateSummary.
type SummaryMode string

const (
	ModeQuick    SummaryMode = "quick"
	ModeStandard SummaryMode = "standard"
	ModeDeep     SummaryMode = "deep"
)

// quickTokenBudget is the base target output size for ModeQuick. Some
// providers bill "thinking" tokens against the same budget, so callers
// with such a provider should raise it via ClientConfig.
const quickTokenBudget = 600

// SummaryContext is the input to GenerateSummary.
type SummaryContext struct {
	Mode SummaryMode
	// PDFPath is carried through for logging/correlation only; text
	// extraction is an external collaborator (spec §1).
	PDFPath string
	Abstract string
	// SectionExcerpts feeds ModeStandard.
	SectionExcerpts []string
	// ExtractedText feeds ModeDeep's chunking map phase.
	ExtractedText string
}

// SummaryResult is the output of GenerateSummary. OK is false when every
// provider call failed or was skipped; callers must treat that as
// "leave status pending", never as an error.
type SummaryResult struct {
	Text string
	OK   bool
}

// TagsContext is the input to GenerateTags.
type TagsContext struct {
	Abstract string
	Excerpts []string
	Limit    int
}

// TagsResult is the output of GenerateTags.
type TagsResult struct {
	Tags []string
	OK   bool
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Provider ProviderConfig
	// RequestTimeout bounds every provider call (default 30s per spec §5).
	RequestTimeout time.Duration
	// RequestsPerSecond rate-limits outbound provider calls; zero disables
	// limiting.
	RequestsPerSecond float64
	// QuickTokenBudget overrides the default ModeQuick output budget.
	QuickTokenBudget int
	Logger           *slog.Logger
}

// Client is the AI enrichment client (spec C4): a uniform
// summary/tags contract over a polymorphic Provider.
type Client struct {
	provider    Provider
	timeout     time.Duration
	limiter     *rate.Limiter
	quickTokens int
	log         *slog.Logger
}

// NewClient constructs a Client. An unknown provider name is surfaced as
// an LLMConfigError; a missing API key is not checked here and only shows
// up as a failed call later.
func NewClient(cfg ClientConfig) (*Client, error) {
	provider, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, apperrors.NewLLMConfigError(
			"Cannot construct the summarization provider",
			err.Error(),
			"Check the configured llm.provider, base URL, and API key",
			err,
		)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	quickTokens := cfg.QuickTokenBudget
	if quickTokens <= 0 {
		quickTokens = quickTokenBudget
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		provider:    provider,
		timeout:     timeout,
		limiter:     limiter,
		quickTokens: quickTokens,
		log:         log,
	}, nil
}

// NewClientWithProvider builds a Client around an already-constructed
// Provider, bypassing NewProvider's dispatch. Used by tests and by
// callers that need a provider wired with non-standard transport.
func NewClientWithProvider(provider Provider, cfg ClientConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	quickTokens := cfg.QuickTokenBudget
	if quickTokens <= 0 {
		quickTokens = quickTokenBudget
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{provider: provider, timeout: timeout, limiter: limiter, quickTokens: quickTokens, log: log}
}

// Close releases the client's HTTP connection pool. Providers built on
// net/http share the default transport's idle-connection pool, so Close
// closes that transport's idle connections.
func (c *Client) Close() error {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GenerateSummary produces a summary per the mode carried on ctx.Mode.
// Provider errors are caught and reported via SummaryResult.OK=false
// rather than propagated — the workflow treats a false OK as "leave
// status pending".
func (c *Client) GenerateSummary(ctx context.Context, sctx SummaryContext) SummaryResult {
	reqID := uuid.NewString()
	log := c.log.With("request_id", reqID, "pdf_path", sctx.PDFPath, "mode", string(sctx.Mode))

	switch sctx.Mode {
	case ModeDeep:
		if result, ok := c.generateDeepSummary(ctx, sctx, log); ok {
			return result
		}
		log.Info("llm.summary.deep.fallback_standard")
		fallthrough
	case ModeStandard:
		return c.generateStandardSummary(ctx, sctx, log)
	case ModeQuick, "":
		return c.generateQuickSummary(ctx, sctx, log)
	default:
		log.Warn("llm.summary.unknown_mode")
		return SummaryResult{}
	}
}

func (c *Client) generateQuickSummary(ctx context.Context, sctx SummaryContext, log *slog.Logger) SummaryResult {
	log.Info("llm.summary.quick.start")
	text, err := c.chat(ctx, SummaryPrompts.Quick, sctx.Abstract, c.quickTokens)
	if err != nil {
		log.Warn("llm.summary.quick.error", "error", err)
		return SummaryResult{}
	}
	log.Info("llm.summary.quick.done")
	return SummaryResult{Text: text, OK: text != ""}
}

func (c *Client) generateStandardSummary(ctx context.Context, sctx SummaryContext, log *slog.Logger) SummaryResult {
	log.Info("llm.summary.standard.start")
	var body strings.Builder
	body.WriteString("Abstract:\n")
	body.WriteString(sctx.Abstract)
	if len(sctx.SectionExcerpts) > 0 {
		body.WriteString("\n\nSection excerpts:\n")
		for _, e := range sctx.SectionExcerpts {
			body.WriteString("- ")
			body.WriteString(e)
			body.WriteString("\n")
		}
	}

	text, err := c.chat(ctx, SummaryPrompts.Standard, body.String(), 0)
	if err != nil {
		log.Warn("llm.summary.standard.error", "error", err)
		return SummaryResult{}
	}
	log.Info("llm.summary.standard.done")
	return SummaryResult{Text: text, OK: text != ""}
}

func (c *Client) generateDeepSummary(ctx context.Context, sctx SummaryContext, log *slog.Logger) (SummaryResult, bool) {
	chunks := ChunkText(sctx.ExtractedText, 0)
	if len(chunks) == 0 {
		return SummaryResult{}, false
	}

	log.Info("llm.summary.deep.start", "chunk_count", len(chunks))

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text, err := c.chat(ctx, SummaryPrompts.ChunkMap, chunk, 0)
		if err != nil {
			log.Warn("llm.summary.deep.chunk_error", "chunk_index", i, "error", err)
			continue
		}
		if text != "" {
			chunkSummaries = append(chunkSummaries, text)
		}
	}
	if len(chunkSummaries) == 0 {
		return SummaryResult{}, false
	}

	var reduceInput strings.Builder
	reduceInput.WriteString("Abstract:\n")
	reduceInput.WriteString(sctx.Abstract)
	reduceInput.WriteString("\n\nChunk summaries:\n")
	for _, s := range chunkSummaries {
		reduceInput.WriteString("- ")
		reduceInput.WriteString(s)
		reduceInput.WriteString("\n")
	}

	text, err := c.chat(ctx, SummaryPrompts.Reduce, reduceInput.String(), 0)
	if err != nil || text == "" {
		log.Warn("llm.summary.deep.reduce_error", "error", err)
		return SummaryResult{}, false
	}
	log.Info("llm.summary.deep.done")
	return SummaryResult{Text: text, OK: true}, true
}

// GenerateTags returns up to ctx.Limit topical tags, duplicates removed
// preserving order. Provider failures are caught and reported via
// TagsResult.OK=false.
func (c *Client) GenerateTags(ctx context.Context, tctx TagsContext) TagsResult {
	reqID := uuid.NewString()
	log := c.log.With("request_id", reqID)
	log.Info("llm.tags.start")

	var body strings.Builder
	body.WriteString("Abstract:\n")
	body.WriteString(tctx.Abstract)
	for _, e := range tctx.Excerpts {
		body.WriteString("\n\n")
		body.WriteString(e)
	}

	text, err := c.chat(ctx, SummaryPrompts.Tags, body.String(), 0)
	if err != nil || text == "" {
		log.Warn("llm.tags.error", "error", err)
		return TagsResult{}
	}

	tags := dedupeTags(strings.Split(text, ","), tctx.Limit)
	log.Info("llm.tags.done", "tag_count", len(tags))
	return TagsResult{Tags: tags, OK: len(tags) > 0}
}

func dedupeTags(raw []string, limit int) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Chat(callCtx, ChatRequest{
		Messages:  BuildChatMessages(systemPrompt, userPrompt),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", apperrors.NewLLMAPIError(
			"Summarization provider call failed",
			err.Error(),
			"",
			err,
		)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}
