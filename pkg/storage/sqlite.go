// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/kraklabs/zotomatic/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// Config controls how Open and OpenReadOnly establish a connection.
type Config struct {
	// Path is the filesystem location of the SQLite database file.
	Path string
}

// sqliteBackend is the reference Backend implementation.
type sqliteBackend struct {
	db       *sql.DB
	readOnly bool
}

// Open creates the database directory if needed, opens (or creates) the
// database in WAL mode with foreign keys enabled, and applies the
// embedded schema. Open is idempotent across restarts.
func Open(cfg Config) (Backend, error) {
	return open(cfg, false)
}

// OpenReadOnly opens a second connection to an existing database for
// short, non-mutating queries that should not contend with the single
// writer. The schema is not re-applied.
func OpenReadOnly(cfg Config) (Backend, error) {
	return open(cfg, true)
}

func open(cfg Config, readOnly bool) (Backend, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot create the state database directory",
			err.Error(),
			fmt.Sprintf("Check permissions on %s", dir),
			err,
		)
	}

	escapedPath := strings.ReplaceAll(cfg.Path, " ", "%20")
	connStr := "file:" + escapedPath + "?_time_format=sqlite"
	if readOnly {
		connStr += "&mode=ro"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot open the state database",
			err.Error(),
			"Check that the database path is writable and not a directory",
			err,
		)
	}

	if !readOnly {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError(
			"Cannot enable WAL mode on the state database",
			err.Error(),
			"Stop other zotomatic instances and retry",
			err,
		)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError(
			"Cannot enable foreign keys on the state database",
			err.Error(),
			"Stop other zotomatic instances and retry",
			err,
		)
	}

	if !readOnly {
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, apperrors.NewStorageError(
				"Cannot initialize the state database schema",
				err.Error(),
				"Delete the database file to rebuild it from scratch",
				err,
			)
		}
	}

	return &sqliteBackend{db: db, readOnly: readOnly}, nil
}

// WithTx begins a transaction, runs fn, and commits — rolling back
// automatically if fn returns an error. Callers never observe a
// partially applied write.
func (b *sqliteBackend) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot start a database transaction",
			err.Error(),
			"Stop other zotomatic instances and retry",
			err,
		)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError(
			"Cannot commit a database transaction",
			err.Error(),
			"Stop other zotomatic instances and retry",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) UpsertFile(ctx context.Context, f FileState) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO files (file_path, mtime_ns, size, sha1, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			mtime_ns = excluded.mtime_ns,
			size = excluded.size,
			sha1 = excluded.sha1,
			last_seen_at = excluded.last_seen_at
	`, f.FilePath, f.ModTimeNs, f.Size, nullableString(f.SHA1), f.LastSeenAt.UnixNano())
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot record file state",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) GetFile(ctx context.Context, path string) (*FileState, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT file_path, mtime_ns, size, sha1, last_seen_at FROM files WHERE file_path = ?
	`, path)

	var f FileState
	var sha1 sql.NullString
	var lastSeenNs int64
	if err := row.Scan(&f.FilePath, &f.ModTimeNs, &f.Size, &sha1, &lastSeenNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError(
			"Cannot read file state",
			err.Error(),
			"",
			err,
		)
	}
	f.SHA1 = sha1.String
	f.LastSeenAt = time.Unix(0, lastSeenNs)
	return &f, nil
}

func (b *sqliteBackend) Enqueue(ctx context.Context, path string, now time.Time) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO pending (file_path, attempt_count, next_attempt_at, last_error, enqueued_at)
		VALUES (?, 0, ?, NULL, ?)
		ON CONFLICT(file_path) DO NOTHING
	`, path, now.UnixNano(), now.UnixNano())
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot enqueue a pending file",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) GetDue(ctx context.Context, now time.Time, limit int) ([]PendingEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT file_path, attempt_count, next_attempt_at, last_error, enqueued_at
		FROM pending
		WHERE next_attempt_at <= ?
		ORDER BY next_attempt_at ASC, enqueued_at ASC
		LIMIT ?
	`, now.UnixNano(), limit)
	if err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot read the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var e PendingEntry
		var lastErr sql.NullString
		var nextAttemptNs, enqueuedNs int64
		if err := rows.Scan(&e.FilePath, &e.AttemptCount, &nextAttemptNs, &lastErr, &enqueuedNs); err != nil {
			return nil, apperrors.NewStorageError(
				"Cannot scan a pending queue row",
				err.Error(),
				"",
				err,
			)
		}
		e.NextAttemptAt = time.Unix(0, nextAttemptNs)
		e.EnqueuedAt = time.Unix(0, enqueuedNs)
		e.LastError = lastErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) UpdateAttempt(ctx context.Context, path string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	_, err := b.db.ExecContext(ctx, `
		UPDATE pending SET attempt_count = ?, next_attempt_at = ?, last_error = ?
		WHERE file_path = ?
	`, attemptCount, nextAttemptAt.UnixNano(), nullableString(lastError), path)
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot update a pending queue entry",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) Resolve(ctx context.Context, path string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM pending WHERE file_path = ?`, path)
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot remove a resolved pending entry",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending`).Scan(&n); err != nil {
		return 0, apperrors.NewStorageError(
			"Cannot count the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	return n, nil
}

func (b *sqliteBackend) ListPending(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT file_path, attempt_count, next_attempt_at, last_error, enqueued_at
		FROM pending
		ORDER BY enqueued_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperrors.NewStorageError(
			"Cannot list the pending queue",
			err.Error(),
			"",
			err,
		)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var e PendingEntry
		var lastErr sql.NullString
		var nextAttemptNs, enqueuedNs int64
		if err := rows.Scan(&e.FilePath, &e.AttemptCount, &nextAttemptNs, &lastErr, &enqueuedNs); err != nil {
			return nil, apperrors.NewStorageError(
				"Cannot scan a pending queue row",
				err.Error(),
				"",
				err,
			)
		}
		e.NextAttemptAt = time.Unix(0, nextAttemptNs)
		e.EnqueuedAt = time.Unix(0, enqueuedNs)
		e.LastError = lastErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) UpsertDirectory(ctx context.Context, d DirectoryState) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO directories (path, last_scanned_at)
		VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET last_scanned_at = excluded.last_scanned_at
	`, d.Path, d.LastScannedAt.UnixNano())
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot record directory scan progress",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) GetDirectory(ctx context.Context, path string) (*DirectoryState, error) {
	row := b.db.QueryRowContext(ctx, `SELECT path, last_scanned_at FROM directories WHERE path = ?`, path)

	var d DirectoryState
	var lastScannedNs int64
	if err := row.Scan(&d.Path, &lastScannedNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError(
			"Cannot read directory scan progress",
			err.Error(),
			"",
			err,
		)
	}
	d.LastScannedAt = time.Unix(0, lastScannedNs)
	return &d, nil
}

func (b *sqliteBackend) UpsertAttachment(ctx context.Context, a AttachmentState) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO attachments (file_path, attachment_id, parent_key, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			attachment_id = excluded.attachment_id,
			parent_key = excluded.parent_key,
			cached_at = excluded.cached_at
	`, a.FilePath, a.AttachmentID, a.ParentKey, a.CachedAt.UnixNano())
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot cache an attachment binding",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

func (b *sqliteBackend) GetAttachment(ctx context.Context, path string) (*AttachmentState, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT file_path, attachment_id, parent_key, cached_at FROM attachments WHERE file_path = ?
	`, path)

	var a AttachmentState
	var cachedNs int64
	if err := row.Scan(&a.FilePath, &a.AttachmentID, &a.ParentKey, &cachedNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError(
			"Cannot read a cached attachment binding",
			err.Error(),
			"",
			err,
		)
	}
	a.CachedAt = time.Unix(0, cachedNs)
	return &a, nil
}

func (b *sqliteBackend) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewStorageError(
			"Cannot read a meta value",
			err.Error(),
			"",
			err,
		)
	}
	return value, true, nil
}

func (b *sqliteBackend) SetMeta(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return apperrors.NewStorageError(
			"Cannot write a meta value",
			err.Error(),
			"",
			err,
		)
	}
	return nil
}

// AddMeta atomically increments an integer meta counter inside a
// transaction: readers never see a torn read-modify-write.
func (b *sqliteBackend) AddMeta(ctx context.Context, key string, delta int) (int, error) {
	var total int
	err := b.WithTx(ctx, func(tx *sql.Tx) error {
		var current int
		row := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key)
		var raw string
		switch err := row.Scan(&raw); err {
		case nil:
			v, convErr := strconv.Atoi(raw)
			if convErr != nil {
				return apperrors.NewStorageError(
					"Cannot parse a meta counter",
					fmt.Sprintf("meta key %q has non-integer value %q", key, raw),
					"",
					convErr,
				)
			}
			current = v
		case sql.ErrNoRows:
			current = 0
		default:
			return apperrors.NewStorageError(
				"Cannot read a meta counter",
				err.Error(),
				"",
				err,
			)
		}

		total = current + delta
		_, err = tx.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, strconv.Itoa(total))
		if err != nil {
			return apperrors.NewStorageError(
				"Cannot write a meta counter",
				err.Error(),
				"",
				err,
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
