// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package storage provides the durable, single-writer state store behind
// the zotomatic ingestion engine.
//
// # Overview
//
// Backend is the interface every other component uses to read and write
// persistent state: the per-file dedup table, the pending retry queue,
// directory scan progress, cached reference-manager attachment bindings,
// and a free-form meta key/value table used for the boot-seed flag and
// the daily LLM usage counters.
//
// The reference implementation is SQLite via modernc.org/sqlite (pure
// Go, no CGO), opened in WAL mode with foreign keys enabled:
//
//	backend, err := storage.Open(storage.Config{Path: "/var/lib/zotomatic/zotomatic.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// Open is idempotent: if the database already has the expected tables,
// the embedded schema script is a no-op re-run (CREATE TABLE IF NOT
// EXISTS). A second reader connection can be opened with OpenReadOnly
// for short queries without contending with the single writer.
//
// # Transactions
//
// Every multi-statement mutation runs inside WithTx, which begins a
// transaction, runs the callback, and commits — rolling back
// automatically if the callback returns an error. Callers never observe
// a partially applied write.
package storage
