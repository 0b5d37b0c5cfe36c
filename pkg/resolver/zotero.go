// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
	"github.com/kraklabs/zotomatic/pkg/storage"
)

const defaultBaseURL = "http://127.0.0.1:23119"

// ZoteroConfig configures the HTTP-backed resolver against a local
// Zotero instance's connector/Better BibTeX HTTP server.
type ZoteroConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

func (c ZoteroConfig) withDefaults() ZoteroConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 4
	}
	if c.Burst <= 0 {
		c.Burst = 8
	}
	return c
}

// ZoteroResolver resolves PDF paths against a running Zotero instance's
// local HTTP API, consulting a storage-backed attachment cache first
// (spec SUPPLEMENTED FEATURES #1) to avoid re-resolving known bindings
// on every boot.
type ZoteroResolver struct {
	cfg        ZoteroConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	store      storage.Backend
}

// NewZoteroResolver constructs a resolver backed by store's attachment
// cache and a Zotero HTTP endpoint.
func NewZoteroResolver(cfg ZoteroConfig, store storage.Backend) *ZoteroResolver {
	cfg = cfg.withDefaults()
	return &ZoteroResolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		store:      store,
	}
}

type zoteroLookupRequest struct {
	Path string `json:"path"`
}

type zoteroLookupResponse struct {
	Found        bool     `json:"found"`
	Citekey      string   `json:"citekey"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors"`
	Year         string   `json:"year"`
	Venue        string   `json:"venue"`
	DOI          string   `json:"doi"`
	URL          string   `json:"url"`
	Abstract     string   `json:"abstract"`
	Tags         []string `json:"tags"`
	Highlights   []string `json:"highlights"`
	AttachmentID string   `json:"attachmentID"`
	ParentKey    string   `json:"parentKey"`
}

// Resolve first checks the local attachment cache for a known binding,
// then issues a lookup by parent key (cheap, no full metadata search)
// before falling back to a full path-based lookup against Zotero.
func (r *ZoteroResolver) Resolve(ctx context.Context, pdfPath string) (*Record, error) {
	if cached, err := r.store.GetAttachment(ctx, pdfPath); err != nil {
		return nil, apperrors.NewResolverError(
			"Could not consult the attachment cache",
			err.Error(),
			"",
			err,
		)
	} else if cached != nil {
		rec, err := r.lookupByKey(ctx, cached.ParentKey, cached.AttachmentID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		// Cached binding is stale (item deleted/moved); fall through
		// to a fresh path-based lookup below.
	}

	rec, err := r.lookupByPath(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	if rec.AttachmentID != "" {
		if err := r.store.UpsertAttachment(ctx, storage.AttachmentState{
			FilePath:     pdfPath,
			AttachmentID: rec.AttachmentID,
			ParentKey:    rec.ParentKey,
			CachedAt:     time.Now(),
		}); err != nil {
			return nil, apperrors.NewResolverError(
				"Could not persist the attachment cache entry",
				err.Error(),
				"",
				err,
			)
		}
	}
	return rec, nil
}

func (r *ZoteroResolver) lookupByPath(ctx context.Context, pdfPath string) (*Record, error) {
	return r.post(ctx, "/zotomatic/resolve-path", zoteroLookupRequest{Path: pdfPath})
}

func (r *ZoteroResolver) lookupByKey(ctx context.Context, parentKey, attachmentID string) (*Record, error) {
	return r.post(ctx, "/zotomatic/resolve-key", struct {
		ParentKey    string `json:"parentKey"`
		AttachmentID string `json:"attachmentID"`
	}{parentKey, attachmentID})
}

func (r *ZoteroResolver) post(ctx context.Context, path string, payload any) (*Record, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewResolverError(
			"Resolver request cancelled while rate-limited",
			err.Error(),
			"",
			err,
		)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal resolver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build resolver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewResolverError(
			"Cannot reach the Zotero local API",
			err.Error(),
			"Make sure Zotero is running with the local HTTP server enabled",
			err,
		)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewResolverError(
			"Cannot read the resolver response",
			err.Error(),
			"",
			err,
		)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewResolverError(
			"The Zotero local API returned an error",
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw)),
			"",
			fmt.Errorf("resolver http %d", resp.StatusCode),
		)
	}

	var out zoteroLookupResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.NewResolverError(
			"Cannot parse the resolver response",
			err.Error(),
			"",
			err,
		)
	}
	if !out.Found || out.Citekey == "" {
		return nil, nil
	}

	return &Record{
		Citekey:      out.Citekey,
		Title:        out.Title,
		Authors:      out.Authors,
		Year:         out.Year,
		Venue:        out.Venue,
		DOI:          out.DOI,
		URL:          out.URL,
		Abstract:     out.Abstract,
		Tags:         out.Tags,
		Highlights:   out.Highlights,
		AttachmentID: out.AttachmentID,
		ParentKey:    out.ParentKey,
	}, nil
}
