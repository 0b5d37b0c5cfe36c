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

// Package metrics exposes the counters behind zotomatic's --metrics-addr
// flag: the same outcome tallies the run summary prints, scraped over
// /metrics for operators running the daemon in watch mode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one engine run. Each
// instance owns a private registry so tests can construct several
// without hitting the default registry's duplicate-registration panic.
type Metrics struct {
	registry *prometheus.Registry

	notesCreated prometheus.Counter
	notesUpdated prometheus.Counter
	notesSkipped prometheus.Counter
	notesPending prometheus.Counter
	notesDropped prometheus.Counter
	errorsTotal  prometheus.Counter

	llmCalls *prometheus.CounterVec

	pendingQueueDepth prometheus.Gauge
}

// New builds a Metrics instance and registers its collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.notesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_notes_created_total",
		Help: "Markdown notes created for a newly resolved PDF.",
	})
	m.notesUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_notes_updated_total",
		Help: "Existing notes rewritten for path drift or a resumed pending field.",
	})
	m.notesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_notes_skipped_total",
		Help: "Resolved PDFs whose note already reflects the current state.",
	})
	m.notesPending = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_notes_pending_total",
		Help: "PDFs enqueued onto the pending-resolution retry queue.",
	})
	m.notesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_notes_dropped_total",
		Help: "Pending entries dropped after exceeding the retry ceiling.",
	})
	m.errorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zotomatic_errors_total",
		Help: "Errors surfaced while processing a PDF, of any cause.",
	})
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zotomatic_llm_calls_total",
		Help: "AI enrichment calls by kind (summary/tags) and outcome (ok/error/skipped).",
	}, []string{"kind", "status"})
	m.pendingQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zotomatic_pending_queue_depth",
		Help: "Entries currently waiting on the pending-resolution retry queue.",
	})

	m.registry.MustRegister(
		m.notesCreated, m.notesUpdated, m.notesSkipped, m.notesPending, m.notesDropped,
		m.errorsTotal, m.llmCalls, m.pendingQueueDepth,
	)
	return m
}

// Registry returns the collector registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) NoteCreated()  { m.notesCreated.Inc() }
func (m *Metrics) NoteUpdated()  { m.notesUpdated.Inc() }
func (m *Metrics) NoteSkipped()  { m.notesSkipped.Inc() }
func (m *Metrics) NotePending()  { m.notesPending.Inc() }
func (m *Metrics) NoteDropped()  { m.notesDropped.Inc() }
func (m *Metrics) ErrorOccurred() { m.errorsTotal.Inc() }

// LLMCall records one AI enrichment attempt. kind is "summary" or "tags";
// status is "ok", "error", or "skipped" (the usage ledger refused or failed
// the reservation).
func (m *Metrics) LLMCall(kind, status string) {
	m.llmCalls.WithLabelValues(kind, status).Inc()
}

// SetPendingQueueDepth reports the current retry-queue size.
func (m *Metrics) SetPendingQueueDepth(n int) {
	m.pendingQueueDepth.Set(float64(n))
}
