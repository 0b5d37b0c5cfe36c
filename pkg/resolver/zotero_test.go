// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/zotomatic/pkg/storage"
)

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestZoteroResolver_ResolveByPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zotomatic/resolve-path", r.URL.Path)
		_ = json.NewEncoder(w).Encode(zoteroLookupResponse{
			Found:        true,
			Citekey:      "smith2024",
			Title:        "A Paper",
			AttachmentID: "ATT1",
			ParentKey:    "PAR1",
		})
	}))
	defer srv.Close()

	r := NewZoteroResolver(ZoteroConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, newTestBackend(t))
	rec, err := r.Resolve(context.Background(), "/library/smith2024.pdf")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "smith2024", rec.Citekey)
}

func TestZoteroResolver_NotFoundYieldsNilRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewZoteroResolver(ZoteroConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, newTestBackend(t))
	rec, err := r.Resolve(context.Background(), "/library/unknown.pdf")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestZoteroResolver_ServerErrorIsResolverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	r := NewZoteroResolver(ZoteroConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, newTestBackend(t))
	_, err := r.Resolve(context.Background(), "/library/x.pdf")
	require.Error(t, err)
}

func TestZoteroResolver_UsesAttachmentCacheBeforePathLookup(t *testing.T) {
	var pathHits, keyHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zotomatic/resolve-key":
			keyHits++
			_ = json.NewEncoder(w).Encode(zoteroLookupResponse{Found: true, Citekey: "cached2024", AttachmentID: "ATT9", ParentKey: "PAR9"})
		case "/zotomatic/resolve-path":
			pathHits++
			_ = json.NewEncoder(w).Encode(zoteroLookupResponse{Found: false})
		}
	}))
	defer srv.Close()

	store := newTestBackend(t)
	require.NoError(t, store.UpsertAttachment(context.Background(), storage.AttachmentState{
		FilePath:     "/library/cached.pdf",
		AttachmentID: "ATT9",
		ParentKey:    "PAR9",
		CachedAt:     time.Now(),
	}))

	r := NewZoteroResolver(ZoteroConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, store)
	rec, err := r.Resolve(context.Background(), "/library/cached.pdf")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "cached2024", rec.Citekey)
	assert.Equal(t, 1, keyHits)
	assert.Equal(t, 0, pathHits)
}

func TestZoteroResolver_StaleCacheFallsBackToPathLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zotomatic/resolve-key":
			_ = json.NewEncoder(w).Encode(zoteroLookupResponse{Found: false})
		case "/zotomatic/resolve-path":
			_ = json.NewEncoder(w).Encode(zoteroLookupResponse{Found: true, Citekey: "fresh2024", AttachmentID: "ATT2", ParentKey: "PAR2"})
		}
	}))
	defer srv.Close()

	store := newTestBackend(t)
	require.NoError(t, store.UpsertAttachment(context.Background(), storage.AttachmentState{
		FilePath:     "/library/stale.pdf",
		AttachmentID: "ATT-STALE",
		ParentKey:    "PAR-STALE",
		CachedAt:     time.Now(),
	}))

	r := NewZoteroResolver(ZoteroConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, store)
	rec, err := r.Resolve(context.Background(), "/library/stale.pdf")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "fresh2024", rec.Citekey)
}
