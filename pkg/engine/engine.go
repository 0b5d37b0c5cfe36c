// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package engine implements the orchestrator (spec C10): it wires the
// state store, note repository, metadata resolver, AI enrichment
// client, usage ledger, pending queue, watcher, and note workflow into
// a runnable main loop, and owns the volatile seed buffer and run
// summary.
package engine

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/kraklabs/zotomatic/internal/bootstrap"
	"github.com/kraklabs/zotomatic/internal/config"
	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/internal/metrics"
	"github.com/kraklabs/zotomatic/pkg/llm"
	"github.com/kraklabs/zotomatic/pkg/notes"
	"github.com/kraklabs/zotomatic/pkg/queue"
	"github.com/kraklabs/zotomatic/pkg/resolver"
	"github.com/kraklabs/zotomatic/pkg/storage"
	"github.com/kraklabs/zotomatic/pkg/usage"
	"github.com/kraklabs/zotomatic/pkg/workflow"
)

// Engine is the C10 orchestrator.
type Engine struct {
	cfg  *config.Config
	log  *slog.Logger
	info *bootstrap.StateInfo

	store    storage.Backend
	notes    *notes.Repository
	resolve  resolver.Resolver
	llmClient *llm.Client
	ledger   *usage.Ledger
	queue    *queue.Queue
	processor *queue.Processor
	workflow *workflow.Workflow
	metrics  *metrics.Metrics

	seedMu     sync.Mutex
	seedBuffer []string
	scanDone   bool

	out     io.Writer
	current *Summary
}

// New constructs every C1–C9 collaborator from cfg and assembles the
// orchestrator. LLMConfigError from the enrichment client is caught
// here, per spec §7: summaries/tags degrade to pending rather than
// aborting the run.
func New(cfg *config.Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	store, info, err := bootstrap.OpenState(cfg.StateDir, log)
	if err != nil {
		return nil, apperrors.NewConfigError(
			"Cannot open the state database",
			err.Error(),
			"Check state_dir permissions",
			err,
		)
	}

	notesRepo, err := bootstrap.OpenNotes(cfg.NotesPath, log)
	if err != nil {
		_ = store.Close()
		return nil, apperrors.NewConfigError(
			"Cannot open the notes repository",
			err.Error(),
			"Check notes_path permissions",
			err,
		)
	}

	res := resolver.NewZoteroResolver(resolver.ZoteroConfig{
		BaseURL:           cfg.Resolver.ZoteroBaseURL,
		RequestTimeout:    cfg.Resolver.RequestTimeout,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
	}, store)

	m := metrics.New()

	var llmClient *llm.Client
	if cfg.LLM.SummariesEnabled || cfg.LLM.TagsEnabled {
		c, err := llm.NewClient(llm.ClientConfig{
			Provider: llm.ProviderConfig{
				Type:         cfg.LLM.Provider,
				BaseURL:      cfg.LLM.BaseURL,
				APIKey:       cfg.LLM.APIKey,
				DefaultModel: cfg.LLM.Model,
			},
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Logger:            log,
		})
		if err != nil {
			log.Warn("engine.llm.disabled", "error", err)
		} else {
			llmClient = c
		}
	}

	ledger := usage.NewLedger(store, usage.Config{DailyLimit: cfg.Usage.DailyLimit})

	q := queue.New(store)

	wf := workflow.New(workflow.Config{
		Notes:            notesRepo,
		LLM:              llmClient,
		Ledger:           ledger,
		Metrics:          m,
		SummariesEnabled: cfg.LLM.SummariesEnabled && llmClient != nil,
		TagsEnabled:      cfg.LLM.TagsEnabled && llmClient != nil,
		TagLimit:         cfg.LLM.TagLimit,
		SummaryMode:      llm.SummaryMode(cfg.LLM.SummaryMode),
		Log:              log,
	})

	e := &Engine{
		cfg:       cfg,
		log:       log,
		info:      info,
		store:     store,
		notes:     notesRepo,
		resolve:   res,
		llmClient: llmClient,
		ledger:    ledger,
		queue:     q,
		workflow:  wf,
		metrics:   m,
		out:       os.Stdout,
	}

	e.processor = queue.NewProcessor(q, res, e.onResolved, queue.ProcessorConfig{
		BaseDelay:    cfg.Queue.BaseDelay,
		MaxDelay:     cfg.Queue.MaxDelay,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BatchLimit:   cfg.Queue.BatchLimit,
		TickInterval: cfg.Queue.TickInterval,
	}, log)

	return e, nil
}

// Metrics exposes the engine's metrics registry, for --metrics-addr.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// SetOutput redirects the "Note created/updated" lines, for tests.
func (e *Engine) SetOutput(w io.Writer) { e.out = w }

// Close releases every collaborator that owns a resource.
func (e *Engine) Close() error {
	if e.llmClient != nil {
		_ = e.llmClient.Close()
	}
	return e.store.Close()
}
