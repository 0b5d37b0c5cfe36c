// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package notes

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

// Repository maps citation keys to Markdown note files rooted at a
// configured directory (spec C2). The citekey index is an in-memory
// cache, rebuildable from disk; it is not safe for concurrent writers
// (spec §5), so Repository serializes index mutation behind a mutex and
// documents that only the engine's main thread calls it.
type Repository struct {
	root string
	log  *slog.Logger

	mu    sync.RWMutex
	index map[string]string // citekey -> absolute path
}

// NewRepository returns a Repository rooted at dir. dir is not created
// here; Write creates directories as needed.
func NewRepository(dir string, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{root: dir, log: log, index: make(map[string]string)}
}

// Root returns the configured notes directory.
func (r *Repository) Root() string { return r.root }

// Write writes content to relative (joined against Root), creating
// parent directories as needed, atomically via a temp-file rename.
func (r *Repository) Write(relative string, content []byte) (string, error) {
	path := filepath.Join(r.root, relative)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewNoteRepositoryError(
			"Cannot create the notes directory",
			err.Error(),
			fmt.Sprintf("Check permissions on %s", dir),
			err,
		)
	}

	tmp, err := os.CreateTemp(dir, ".zotomatic-*.md.tmp")
	if err != nil {
		return "", apperrors.NewNoteRepositoryError(
			"Cannot create a temporary note file",
			err.Error(),
			"",
			err,
		)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", apperrors.NewNoteRepositoryError(
			"Cannot write note content",
			err.Error(),
			"",
			err,
		)
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.NewNoteRepositoryError(
			"Cannot finalize note content",
			err.Error(),
			"",
			err,
		)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", apperrors.NewNoteRepositoryError(
			"Cannot finalize the note file",
			err.Error(),
			"",
			err,
		)
	}
	return path, nil
}

// Read returns the raw bytes and decoded BuilderContext of an existing
// note at an absolute path.
func (r *Repository) Read(path string) ([]byte, BuilderContext, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, BuilderContext{}, apperrors.NewNoteRepositoryError(
			"Cannot read a note file",
			err.Error(),
			"",
			err,
		)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, BuilderContext{}, apperrors.NewNoteRepositoryError(
			"Cannot parse a note's frontmatter",
			err.Error(),
			"",
			err,
		)
	}
	return raw, contextFromFrontmatter(doc.frontmatter), nil
}

// BuildCitekeyIndex walks the note tree, opening each .md file and
// extracting its citekey frontmatter field. Errors on individual files
// are logged and skipped rather than propagated — one malformed note
// must not block the whole index (spec §4.2).
func (r *Repository) BuildCitekeyIndex() error {
	index := make(map[string]string)

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			r.log.Warn("notes.index.read_error", "path", path, "error", readErr)
			return nil
		}
		doc, parseErr := parseDocument(raw)
		if parseErr != nil {
			r.log.Warn("notes.index.parse_error", "path", path, "error", parseErr)
			return nil
		}
		key := fmString(doc.frontmatter, fieldCitekey)
		if key == "" {
			return nil
		}
		index[key] = path
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return apperrors.NewNoteRepositoryError(
			"Cannot build the citekey index",
			err.Error(),
			"",
			err,
		)
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()

	r.log.Info("notes.index.built", "count", len(index))
	return nil
}

// FindByCitekey consults the index only; callers rebuild when they
// suspect drift (spec §4.2).
func (r *Repository) FindByCitekey(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.index[key]
	return path, ok
}

// AddToIndex records a newly created note without a full rescan.
func (r *Repository) AddToIndex(key, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[key] = path
}
