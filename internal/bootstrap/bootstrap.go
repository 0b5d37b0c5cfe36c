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

// Package bootstrap opens zotomatic's on-disk state: the SQLite-backed
// C1 store at <state_dir>/zotomatic.db, and the Markdown notes root's
// citekey index.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/zotomatic/pkg/notes"
	"github.com/kraklabs/zotomatic/pkg/storage"
)

// StateInfo describes an opened state database.
type StateInfo struct {
	StateDir string
	DBPath   string
}

// OpenState creates stateDir if needed and opens (or creates) the
// state database inside it. Idempotent across restarts.
func OpenState(stateDir string, logger *slog.Logger) (storage.Backend, *StateInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if stateDir == "" {
		return nil, nil, fmt.Errorf("state_dir is required")
	}

	dbPath := filepath.Join(stateDir, "zotomatic.db")
	logger.Info("bootstrap.state.open", "state_dir", stateDir, "db_path", dbPath)

	backend, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}

	return backend, &StateInfo{StateDir: stateDir, DBPath: dbPath}, nil
}

// OpenNotes builds the note repository rooted at notesPath and rebuilds
// its citekey index from the Markdown files already on disk. A missing
// notesPath is created by the repository's first Write, not here.
func OpenNotes(notesPath string, logger *slog.Logger) (*notes.Repository, error) {
	if notesPath == "" {
		return nil, fmt.Errorf("notes_path is required")
	}
	if _, err := os.Stat(notesPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat notes_path: %w", err)
	}

	repo := notes.NewRepository(notesPath, logger)
	if err := repo.BuildCitekeyIndex(); err != nil {
		return nil, fmt.Errorf("build citekey index: %w", err)
	}
	return repo, nil
}
