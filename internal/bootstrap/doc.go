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

// Package bootstrap handles zotomatic's on-disk setup: the state
// database and the note repository's citekey index.
//
// # Workflow
//
//	backend, info, err := bootstrap.OpenState(cfg.StateDir, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo, err := bootstrap.OpenNotes(cfg.NotesPath, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Idempotency
//
// OpenState is idempotent: the database file and its schema are created
// on first use and reused on every subsequent call. OpenNotes rebuilds
// the citekey index from whatever Markdown files already exist under
// notesPath; it never creates the directory itself.
package bootstrap
