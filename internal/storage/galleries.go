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
	"sort"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
)

// language=SQL
// dialect=SQLite
const putGallerySQL = `INSERT INTO galleries(id, name, description, cover_image_id, created_at, updated_at)
	VALUES(?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
		cover_image_id=excluded.cover_image_id, created_at=excluded.created_at, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const getGallerySQL = `SELECT id, name, description, cover_image_id, created_at, updated_at FROM galleries WHERE id = ?`

// language=SQL
// dialect=SQLite
const allGalleriesSQL = `SELECT id, name, description, cover_image_id, created_at, updated_at FROM galleries`

// PutGallery inserts or fully overwrites the gallery record by id. Callers
// must supply the complete record; there is no partial-field update.
func (s *Store) PutGallery(ctx context.Context, g domain.Gallery) error {
	_, err := s.db.ExecContext(ctx, putGallerySQL,
		g.ID, g.Name, g.Description, g.CoverImageID, encodeTime(g.CreatedAt), encodeTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put gallery %s: %v: %w", g.ID, err, ErrWriteRejected)
	}
	return nil
}

// GetGallery returns the gallery and true, or the zero value and false when
// no record exists. Absence is not an error.
func (s *Store) GetGallery(ctx context.Context, id string) (domain.Gallery, bool, error) {
	g, err := scanGallery(s.db.QueryRowContext(ctx, getGallerySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Gallery{}, false, nil
	}
	if err != nil {
		return domain.Gallery{}, false, fmt.Errorf("get gallery %s: %v: %w", id, err, ErrReadRejected)
	}
	return g, true, nil
}

// AllGalleries returns every gallery record sorted by creation time
// descending. All matches are materialized first; ordering is applied here
// rather than relying on the store's native cursor order. Ties keep their
// scan order, which is deterministic within one process run.
func (s *Store) AllGalleries(ctx context.Context) ([]domain.Gallery, error) {
	rows, err := s.db.QueryContext(ctx, allGalleriesSQL)
	if err != nil {
		return nil, fmt.Errorf("query galleries: %v: %w", err, ErrReadRejected)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Gallery
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gallery: %v: %w", err, ErrReadRejected)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drain galleries: %v: %w", err, ErrReadRejected)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteGallery removes the gallery record and every image owned by it as one
// atomic unit-of-work. On failure the prior state is fully preserved; there
// is no partial cascade. A missing gallery id is not an error.
func (s *Store) DeleteGallery(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cascade delete %s: %v: %w", id, err, ErrWriteRejected)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE gallery_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("cascade delete images of %s: %v: %w", id, err, ErrWriteRejected)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM galleries WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("cascade delete gallery %s: %v: %w", id, err, ErrWriteRejected)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cascade delete %s: %v: %w", id, err, ErrWriteRejected)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanGallery(r rowScanner) (domain.Gallery, error) {
	var g domain.Gallery
	var created, updated string
	if err := r.Scan(&g.ID, &g.Name, &g.Description, &g.CoverImageID, &created, &updated); err != nil {
		return domain.Gallery{}, err
	}
	var err error
	if g.CreatedAt, err = decodeTime(created); err != nil {
		return domain.Gallery{}, err
	}
	if g.UpdatedAt, err = decodeTime(updated); err != nil {
		return domain.Gallery{}, err
	}
	return g, nil
}
