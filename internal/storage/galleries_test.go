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
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
)

func mkGallery(id string, created time.Time) domain.Gallery {
	return domain.Gallery{
		ID:          id,
		Name:        "gallery " + id,
		Description: "about " + id,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestPutGetGalleryRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := mkGallery("g-1", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	want.CoverImageID = "img-7"
	if err := s.PutGallery(ctx, want); err != nil {
		t.Fatalf("PutGallery: %v", err)
	}
	got, ok, err := s.GetGallery(ctx, "g-1")
	if err != nil || !ok {
		t.Fatalf("GetGallery: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundtrip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestGetGalleryAbsentIsNotError(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetGallery(context.Background(), "nope")
	if err != nil {
		t.Fatalf("absent get errored: %v", err)
	}
	if ok {
		t.Fatalf("absent get reported ok")
	}
}

func TestAllGalleriesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Insertion order deliberately not creation order.
	for _, g := range []domain.Gallery{
		mkGallery("mid", base.Add(1 * time.Hour)),
		mkGallery("newest", base.Add(2 * time.Hour)),
		mkGallery("oldest", base),
	} {
		if err := s.PutGallery(ctx, g); err != nil {
			t.Fatalf("PutGallery %s: %v", g.ID, err)
		}
	}
	got, err := s.AllGalleries(ctx)
	if err != nil {
		t.Fatalf("AllGalleries: %v", err)
	}
	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	if !reflect.DeepEqual(ids, []string{"newest", "mid", "oldest"}) {
		t.Fatalf("order = %v, want [newest mid oldest]", ids)
	}
}

// TestDeleteGalleryCascade covers cascade completeness: after the delete the
// gallery-scoped query is empty and a direct get on each formerly-owned image
// id reports not-found. Records of other galleries are untouched.
func TestDeleteGalleryCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	if err := s.PutGallery(ctx, mkGallery("trip", now)); err != nil {
		t.Fatalf("PutGallery: %v", err)
	}
	if err := s.PutGallery(ctx, mkGallery("keep", now)); err != nil {
		t.Fatalf("PutGallery: %v", err)
	}
	var owned []string
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("t-%d", i)
		owned = append(owned, id)
		if err := s.PutImage(ctx, mkImage(id, "trip", now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("PutImage: %v", err)
		}
	}
	if err := s.PutImage(ctx, mkImage("k-0", "keep", now)); err != nil {
		t.Fatalf("PutImage: %v", err)
	}

	if err := s.DeleteGallery(ctx, "trip"); err != nil {
		t.Fatalf("DeleteGallery: %v", err)
	}

	if _, ok, err := s.GetGallery(ctx, "trip"); err != nil || ok {
		t.Fatalf("gallery survived cascade (ok=%v err=%v)", ok, err)
	}
	imgs, err := s.ImagesByGallery(ctx, "trip")
	if err != nil {
		t.Fatalf("ImagesByGallery: %v", err)
	}
	if len(imgs) != 0 {
		t.Fatalf("expected no images after cascade, got %d", len(imgs))
	}
	for _, id := range owned {
		if _, ok, err := s.GetImage(ctx, id); err != nil || ok {
			t.Fatalf("orphaned image %s after cascade (ok=%v err=%v)", id, ok, err)
		}
	}
	n, err := s.CountImagesByGallery(ctx, "trip")
	if err != nil || n != 0 {
		t.Fatalf("count after cascade = %d (err %v), want 0", n, err)
	}
	// The unrelated gallery kept its records.
	if _, ok, err := s.GetImage(ctx, "k-0"); err != nil || !ok {
		t.Fatalf("unrelated image lost in cascade (ok=%v err=%v)", ok, err)
	}
}

func TestDeleteGalleryAbsentIsNotError(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteGallery(context.Background(), "never-existed"); err != nil {
		t.Fatalf("deleting absent gallery errored: %v", err)
	}
}
