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
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
)

func mkImage(id, galleryID string, ts time.Time) domain.GalleryImage {
	return domain.GalleryImage{
		ID:        id,
		GalleryID: galleryID,
		URL:       "data:image/png;base64,AA==",
		Data:      []byte{0x89, 0x50},
		MimeType:  "image/png",
		Description: domain.ImageDescription{
			Subject:  "subject of " + id,
			Colors:   []string{"teal", "amber"},
			Style:    "photographic",
			Mood:     "calm",
			Lighting: "golden hour",
			Elements: []string{"tree", "water"},
		},
		Timestamp: ts,
	}
}

func TestPutGetImageRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := mkImage("img-1", "gal-1", time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC))
	if err := s.PutImage(ctx, want); err != nil {
		t.Fatalf("PutImage: %v", err)
	}
	got, ok, err := s.GetImage(ctx, "img-1")
	if err != nil || !ok {
		t.Fatalf("GetImage: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundtrip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestPutImageOverwritesWholeRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	img := mkImage("img-1", "gal-1", time.Now())
	if err := s.PutImage(ctx, img); err != nil {
		t.Fatalf("PutImage: %v", err)
	}
	img.MimeType = "image/jpeg"
	img.Description.Subject = "replaced"
	if err := s.PutImage(ctx, img); err != nil {
		t.Fatalf("PutImage overwrite: %v", err)
	}
	got, ok, err := s.GetImage(ctx, "img-1")
	if err != nil || !ok {
		t.Fatalf("GetImage: ok=%v err=%v", ok, err)
	}
	if got.MimeType != "image/jpeg" || got.Description.Subject != "replaced" {
		t.Fatalf("overwrite not applied: %+v", got)
	}
	n, err := s.CountImagesByGallery(ctx, "gal-1")
	if err != nil || n != 1 {
		t.Fatalf("count after overwrite = %d (err %v), want 1", n, err)
	}
}

func TestGetImageAbsentIsNotError(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetImage(context.Background(), "nope")
	if err != nil {
		t.Fatalf("absent get errored: %v", err)
	}
	if ok {
		t.Fatalf("absent get reported ok")
	}
}

// TestBatchPutAtomicAbort forces the batch transaction to abort on its last
// record (empty id violates the CHECK constraint) and expects zero of the
// records to be visible afterwards.
func TestBatchPutAtomicAbort(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	batch := []domain.GalleryImage{
		mkImage("b-1", "gal-1", now),
		mkImage("b-2", "gal-1", now.Add(time.Second)),
		mkImage("", "gal-1", now.Add(2*time.Second)),
	}
	err := s.PutImages(ctx, batch)
	if err == nil {
		t.Fatalf("expected batch abort")
	}
	if !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("abort error = %v, want ErrWriteRejected", err)
	}
	for _, id := range []string{"b-1", "b-2"} {
		if _, ok, err := s.GetImage(ctx, id); err != nil || ok {
			t.Fatalf("image %s visible after aborted batch (ok=%v err=%v)", id, ok, err)
		}
	}
	n, err := s.CountImagesByGallery(ctx, "gal-1")
	if err != nil || n != 0 {
		t.Fatalf("count after aborted batch = %d (err %v), want 0", n, err)
	}
}

func TestBatchPutCommitsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	batch := []domain.GalleryImage{
		mkImage("b-1", "gal-1", now),
		mkImage("b-2", "gal-1", now.Add(time.Second)),
		mkImage("b-3", "gal-2", now.Add(2*time.Second)),
	}
	if err := s.PutImages(ctx, batch); err != nil {
		t.Fatalf("PutImages: %v", err)
	}
	n, err := s.CountImagesByGallery(ctx, "gal-1")
	if err != nil || n != 2 {
		t.Fatalf("count gal-1 = %d (err %v), want 2", n, err)
	}
}

func TestImagesByGalleryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Interleave insertion order across galleries and timestamps.
	inserts := []domain.GalleryImage{
		mkImage("i-2", "trip", base.Add(2*time.Hour)),
		mkImage("other", "elsewhere", base.Add(10*time.Hour)),
		mkImage("i-1", "trip", base.Add(1*time.Hour)),
		mkImage("i-3", "trip", base.Add(3*time.Hour)),
	}
	for _, img := range inserts {
		if err := s.PutImage(ctx, img); err != nil {
			t.Fatalf("PutImage %s: %v", img.ID, err)
		}
	}
	got, err := s.ImagesByGallery(ctx, "trip")
	if err != nil {
		t.Fatalf("ImagesByGallery: %v", err)
	}
	var ids []string
	for _, img := range got {
		ids = append(ids, img.ID)
	}
	if !reflect.DeepEqual(ids, []string{"i-3", "i-2", "i-1"}) {
		t.Fatalf("order = %v, want [i-3 i-2 i-1]", ids)
	}
}

// Colliding timestamps must yield a deterministic order within one process
// run: repeated reads agree with each other.
func TestImagesByGalleryTieOrderDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.PutImage(ctx, mkImage(fmt.Sprintf("tie-%d", i), "trip", ts)); err != nil {
			t.Fatalf("PutImage: %v", err)
		}
	}
	first, err := s.ImagesByGallery(ctx, "trip")
	if err != nil {
		t.Fatalf("ImagesByGallery: %v", err)
	}
	for n := 0; n < 3; n++ {
		again, err := s.ImagesByGallery(ctx, "trip")
		if err != nil {
			t.Fatalf("ImagesByGallery repeat: %v", err)
		}
		for i := range first {
			if again[i].ID != first[i].ID {
				t.Fatalf("tie order changed between reads: %v vs %v", again[i].ID, first[i].ID)
			}
		}
	}
}

func TestAllImagesNativeDescendingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.PutImage(ctx, mkImage(id, "g", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("PutImage: %v", err)
		}
	}
	got, err := s.AllImages(ctx)
	if err != nil {
		t.Fatalf("AllImages: %v", err)
	}
	var ids []string
	for _, img := range got {
		ids = append(ids, img.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
		t.Fatalf("order = %v, want [c b a]", ids)
	}
}

func TestCountMatchesMaterializedLength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 4; i++ {
		if err := s.PutImage(ctx, mkImage(fmt.Sprintf("c-%d", i), "trip", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("PutImage: %v", err)
		}
	}
	if err := s.DeleteImage(ctx, "c-2"); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	imgs, err := s.ImagesByGallery(ctx, "trip")
	if err != nil {
		t.Fatalf("ImagesByGallery: %v", err)
	}
	n, err := s.CountImagesByGallery(ctx, "trip")
	if err != nil {
		t.Fatalf("CountImagesByGallery: %v", err)
	}
	if n != len(imgs) {
		t.Fatalf("count %d != materialized %d", n, len(imgs))
	}
}

func TestDeleteImageAbsentIsNotError(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteImage(context.Background(), "never-existed"); err != nil {
		t.Fatalf("deleting absent id errored: %v", err)
	}
}
