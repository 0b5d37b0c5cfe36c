// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides shared storage fixtures for zotomatic's
// integration tests.
//
// # Quick Start
//
// Use SetupTestBackend to create a file-backed SQLite backend in a
// scratch directory that is removed when the test ends:
//
//	func TestMyFeature(t *testing.T) {
//	    backend := testing.SetupTestBackend(t)
//	    testing.SeedFile(t, backend, "/lib/a.pdf", 1000, 2048)
//	    f, _ := backend.GetFile(context.Background(), "/lib/a.pdf")
//	    require.NotNil(t, f)
//	}
//
// # Seeding Test Data
//
//   - SeedFile: insert a dedup row into the files table
//   - SeedPending: insert a row into the retry queue
//   - SeedDirectory: insert a watched-root progress marker
//   - SeedAttachment: insert a cached attachment binding
package testing
