/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	applog "github.com/trpwrmusic/vibematch-gallery/internal/log"
	"github.com/trpwrmusic/vibematch-gallery/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// LibraryDirName stores all per-library durable data under the library root.
	LibraryDirName  = ".vibematch"
	LibraryFileName = "library.sqlite"

	// schemaVersion tracks the on-disk schema.
	// v1: images collection keyed by id, indexed by ts.
	// v2: images gains the gallery_id lookup path; galleries collection added,
	//     indexed by created_at.
	schemaVersion = 2
)

// LibraryPath returns the full path to the library's embedded database file.
func LibraryPath(root string) string {
	return filepath.Join(root, LibraryDirName, LibraryFileName)
}

// Store is a handle to one library database. It is safe for concurrent use;
// the engine serializes conflicting transactions.
type Store struct {
	db   *sql.DB
	root string
}

// The connection for a library is opened at most once per process and shared
// for the process lifetime; it is never torn down except at process exit.
var (
	storesMu sync.Mutex
	stores   = map[string]*Store{}
)

// Open returns the store for the given library root, creating and migrating
// the database on first use. Subsequent calls with the same root return the
// cached handle. Migration failures are fatal to the call and are not retried.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("library root is required: %w", ErrStorageUnavailable)
	}
	storesMu.Lock()
	defer storesMu.Unlock()
	if s, ok := stores[root]; ok {
		return s, nil
	}

	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(
		slog.String("root", root),
	)
	if err := os.MkdirAll(filepath.Join(root, LibraryDirName), 0o755); err != nil {
		l.Error("create library dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create library dir: %v: %w", err, ErrStorageUnavailable)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(LibraryPath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %v: %w", err, ErrStorageUnavailable)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %v: %w", err, ErrStorageUnavailable)
	}

	if err := ensureVersionTable(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure version table failed", slog.Any("err", err))
		return nil, fmt.Errorf("%v: %w", err, ErrStorageUnavailable)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, fmt.Errorf("%v: %w", err, ErrStorageUnavailable)
	}

	s := &Store{db: db, root: root}
	stores[root] = s
	l.Info("library ready", slog.String("path", LibraryPath(root)))
	return s, nil
}

// Root returns the library root this store belongs to.
func (s *Store) Root() string { return s.root }

// ensureVersionTable creates the single-row version table and seeds it with
// schema 0 for a fresh database so every migration step runs.
func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
// Each step is additive and idempotent per sub-change; a database already at
// or beyond schemaVersion is left untouched.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Never downgrade.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		var stmts []string
		switch next {
		case 1:
			stmts = []string{
				`CREATE TABLE IF NOT EXISTS images (
					id          TEXT PRIMARY KEY CHECK(length(id) > 0),
					url         TEXT NOT NULL,
					data        BLOB,
					mime_type   TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '{}',
					ts          TEXT NOT NULL
				);`,
				`CREATE INDEX IF NOT EXISTS idx_images_ts ON images(ts);`,
			}
		case 2:
			// Pre-multi-gallery databases have an images table without the
			// owning-gallery lookup path; add it without disturbing rows.
			hasGallery, herr := tableHasColumn(ctx, tx, "images", "gallery_id")
			if herr != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d probe images: %w", next, herr)
			}
			if !hasGallery {
				stmts = append(stmts, `ALTER TABLE images ADD COLUMN gallery_id TEXT NOT NULL DEFAULT '';`)
			}
			stmts = append(stmts,
				`CREATE INDEX IF NOT EXISTS idx_images_gallery ON images(gallery_id);`,
				`CREATE TABLE IF NOT EXISTS galleries (
					id             TEXT PRIMARY KEY CHECK(length(id) > 0),
					name           TEXT NOT NULL,
					description    TEXT NOT NULL DEFAULT '',
					cover_image_id TEXT NOT NULL DEFAULT '',
					created_at     TEXT NOT NULL,
					updated_at     TEXT NOT NULL
				);`,
				`CREATE INDEX IF NOT EXISTS idx_galleries_created ON galleries(created_at);`,
			)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// tableHasColumn reports whether the named column exists on the table.
func tableHasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// TimeLayout is the on-disk timestamp representation. The fractional part is
// fixed-width so UTC strings sort lexicographically in timestamp order, which
// the deprecated unscoped image query relies on. Exporters reuse it so archive
// manifests carry the same encoding as the library.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const tsLayout = TimeLayout

func encodeTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return t, nil
}
