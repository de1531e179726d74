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
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
)

// language=SQL
// dialect=SQLite
const putImageSQL = `INSERT INTO images(id, gallery_id, url, data, mime_type, description, ts)
	VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET gallery_id=excluded.gallery_id, url=excluded.url, data=excluded.data,
		mime_type=excluded.mime_type, description=excluded.description, ts=excluded.ts`

// language=SQL
// dialect=SQLite
const getImageSQL = `SELECT id, gallery_id, url, data, mime_type, description, ts FROM images WHERE id = ?`

// language=SQL
// dialect=SQLite
const imagesByGallerySQL = `SELECT id, gallery_id, url, data, mime_type, description, ts FROM images WHERE gallery_id = ?`

// language=SQL
// dialect=SQLite
const allImagesSQL = `SELECT id, gallery_id, url, data, mime_type, description, ts FROM images ORDER BY ts DESC`

// language=SQL
// dialect=SQLite
const countImagesSQL = `SELECT COUNT(*) FROM images WHERE gallery_id = ?`

// PutImage inserts or fully overwrites the image record by id. The description
// is stored as an opaque blob and returned unchanged by reads.
func (s *Store) PutImage(ctx context.Context, img domain.GalleryImage) error {
	desc, err := json.Marshal(img.Description)
	if err != nil {
		return fmt.Errorf("encode description of %s: %v: %w", img.ID, err, ErrWriteRejected)
	}
	if _, err := s.db.ExecContext(ctx, putImageSQL,
		img.ID, img.GalleryID, img.URL, img.Data, img.MimeType, string(desc), encodeTime(img.Timestamp)); err != nil {
		return fmt.Errorf("put image %s: %v: %w", img.ID, err, ErrWriteRejected)
	}
	return nil
}

// PutImages writes the records as one atomic unit-of-work: either every record
// is visible afterwards or, on abort, none are.
func (s *Store) PutImages(ctx context.Context, imgs []domain.GalleryImage) error {
	if len(imgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch put: %v: %w", err, ErrWriteRejected)
	}
	stmt, err := tx.PrepareContext(ctx, putImageSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch put: %v: %w", err, ErrWriteRejected)
	}
	defer func() { _ = stmt.Close() }()
	for _, img := range imgs {
		desc, err := json.Marshal(img.Description)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode description of %s: %v: %w", img.ID, err, ErrWriteRejected)
		}
		if _, err := stmt.ExecContext(ctx,
			img.ID, img.GalleryID, img.URL, img.Data, img.MimeType, string(desc), encodeTime(img.Timestamp)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch put image %s: %v: %w", img.ID, err, ErrWriteRejected)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch put: %v: %w", err, ErrWriteRejected)
	}
	return nil
}

// GetImage returns the image and true, or the zero value and false when no
// record exists. Absence is not an error.
func (s *Store) GetImage(ctx context.Context, id string) (domain.GalleryImage, bool, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, getImageSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GalleryImage{}, false, nil
	}
	if err != nil {
		return domain.GalleryImage{}, false, fmt.Errorf("get image %s: %v: %w", id, err, ErrReadRejected)
	}
	return img, true, nil
}

// ImagesByGallery returns every image owned by the gallery sorted by creation
// time descending. Matches of the gallery_id lookup path are fully
// materialized, then sorted here; ties keep their scan order, which is
// deterministic within one process run.
func (s *Store) ImagesByGallery(ctx context.Context, galleryID string) ([]domain.GalleryImage, error) {
	rows, err := s.db.QueryContext(ctx, imagesByGallerySQL, galleryID)
	if err != nil {
		return nil, fmt.Errorf("query images of %s: %v: %w", galleryID, err, ErrReadRejected)
	}
	out, err := drainImages(rows)
	if err != nil {
		return nil, fmt.Errorf("images of %s: %v: %w", galleryID, err, ErrReadRejected)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// AllImages returns every image record, newest first, relying on the native
// descending cursor order over the ts index.
//
// Deprecated: retained for pre-multi-gallery callers only. New callers must
// use ImagesByGallery.
func (s *Store) AllImages(ctx context.Context) ([]domain.GalleryImage, error) {
	rows, err := s.db.QueryContext(ctx, allImagesSQL)
	if err != nil {
		return nil, fmt.Errorf("query all images: %v: %w", err, ErrReadRejected)
	}
	out, err := drainImages(rows)
	if err != nil {
		return nil, fmt.Errorf("all images: %v: %w", err, ErrReadRejected)
	}
	return out, nil
}

// DeleteImage removes one image record. A missing id is not an error.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete image %s: %v: %w", id, err, ErrWriteRejected)
	}
	return nil
}

// CountImagesByGallery returns the number of images owned by the gallery
// without materializing them.
func (s *Store) CountImagesByGallery(ctx context.Context, galleryID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countImagesSQL, galleryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images of %s: %v: %w", galleryID, err, ErrReadRejected)
	}
	return n, nil
}

func drainImages(rows *sql.Rows) ([]domain.GalleryImage, error) {
	defer func() { _ = rows.Close() }()
	var out []domain.GalleryImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func scanImage(r rowScanner) (domain.GalleryImage, error) {
	var img domain.GalleryImage
	var desc, ts string
	if err := r.Scan(&img.ID, &img.GalleryID, &img.URL, &img.Data, &img.MimeType, &desc, &ts); err != nil {
		return domain.GalleryImage{}, err
	}
	if err := json.Unmarshal([]byte(desc), &img.Description); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("decode description: %w", err)
	}
	t, err := decodeTime(ts)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	img.Timestamp = t
	return img, nil
}
