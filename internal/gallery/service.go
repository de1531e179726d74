/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gallery implements the gallery/image lifecycle service on top of
// the storage gateway. It owns the identifier-generation and timestamp
// policies and the derived views (cover image, counts) that are not the
// database's concern. It is the only caller of the gateway.
package gallery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
	applog "github.com/trpwrmusic/vibematch-gallery/internal/log"
	"github.com/trpwrmusic/vibematch-gallery/internal/storage"
)

// ErrNotFound is returned by flows that need an existing record (edit,
// generate-from-cover) when the referenced record is absent.
var ErrNotFound = errors.New("not found")

// Vision is the contract of the external model-inference collaborator. On any
// failure the service leaves the store untouched; writes happen strictly
// after the collaborator succeeds.
type Vision interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (domain.ImageDescription, error)
	SuggestIdeas(ctx context.Context, descs []domain.ImageDescription) ([]domain.SuggestedIdea, error)
	GenerateFromReference(ctx context.Context, prompt string, refData []byte, refMimeType string) ([]byte, error)
	EditImage(ctx context.Context, prompt string, srcData []byte, srcMimeType string) ([]byte, error)
}

// Upload is one file handed to ImportImages.
type Upload struct {
	Data     []byte
	MimeType string
}

// Service wires the storage gateway to the lifecycle policies.
type Service struct {
	store  *storage.Store
	vision Vision
	log    *slog.Logger

	// overridable in tests
	now   func() time.Time
	newID func() string
}

// NewService returns a service over the given store. vision may be nil when
// only the persistence operations are used.
func NewService(store *storage.Store, vision Vision) *Service {
	return &Service{
		store:  store,
		vision: vision,
		log:    applog.WithComponent("gallery"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateGallery constructs a gallery with a fresh identifier and
// CreatedAt = UpdatedAt = now, persists it, and returns it.
func (s *Service) CreateGallery(ctx context.Context, name, description string) (domain.Gallery, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Gallery{}, errors.New("gallery name is required")
	}
	now := s.now()
	g := domain.Gallery{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutGallery(ctx, g); err != nil {
		return domain.Gallery{}, err
	}
	s.log.Info("gallery created", slog.String("id", g.ID), slog.String("name", g.Name))
	return g, nil
}

// UpdateGallery stamps UpdatedAt with the moment of this call, overwriting
// any caller-supplied value, and persists the full record. Callers needing
// the new timestamp must use the returned copy.
func (s *Service) UpdateGallery(ctx context.Context, g domain.Gallery) (domain.Gallery, error) {
	g.UpdatedAt = s.now()
	if g.UpdatedAt.Before(g.CreatedAt) {
		g.UpdatedAt = g.CreatedAt
	}
	if err := s.store.PutGallery(ctx, g); err != nil {
		return domain.Gallery{}, err
	}
	return g, nil
}

// LoadGallery returns one gallery and true, or the zero value and false when
// no such gallery exists. Absence is not an error.
func (s *Service) LoadGallery(ctx context.Context, id string) (domain.Gallery, bool, error) {
	return s.store.GetGallery(ctx, id)
}

// LoadAllGalleries returns every gallery, newest-created first.
func (s *Service) LoadAllGalleries(ctx context.Context) ([]domain.Gallery, error) {
	return s.store.AllGalleries(ctx)
}

// DeleteGallery removes the gallery and all of its images atomically.
func (s *Service) DeleteGallery(ctx context.Context, id string) error {
	if err := s.store.DeleteGallery(ctx, id); err != nil {
		return err
	}
	s.log.Info("gallery deleted", slog.String("id", id))
	return nil
}

// SaveImage persists one image record. The caller is responsible for setting
// a correct, already-existing GalleryID; the service does not validate that
// the gallery exists (deliberate relaxation, the relationship is enforced
// only by the create/import flows awaiting gallery creation first).
func (s *Service) SaveImage(ctx context.Context, img domain.GalleryImage) error {
	return s.store.PutImage(ctx, img)
}

// SaveImages persists the records as one atomic batch. The same GalleryID
// relaxation as SaveImage applies.
func (s *Service) SaveImages(ctx context.Context, imgs []domain.GalleryImage) error {
	return s.store.PutImages(ctx, imgs)
}

// LoadGalleryImages is the canonical read path: all images of the gallery,
// newest-created first.
func (s *Service) LoadGalleryImages(ctx context.Context, galleryID string) ([]domain.GalleryImage, error) {
	return s.store.ImagesByGallery(ctx, galleryID)
}

// LoadAllImages returns every stored image regardless of gallery.
//
// Deprecated: retained for pre-multi-gallery callers; use LoadGalleryImages.
func (s *Service) LoadAllImages(ctx context.Context) ([]domain.GalleryImage, error) {
	return s.store.AllImages(ctx)
}

// DeleteImage removes a single image.
func (s *Service) DeleteImage(ctx context.Context, id string) error {
	return s.store.DeleteImage(ctx, id)
}

// GalleryImageCount returns the number of images in the gallery via the
// indexed count, without materializing records.
func (s *Service) GalleryImageCount(ctx context.Context, galleryID string) (int, error) {
	return s.store.CountImagesByGallery(ctx, galleryID)
}

// GalleryCoverImage returns the most recently added image of the gallery, or
// ok=false when the gallery has none. The cover is recomputed on every call
// from the head of the sorted image list; it is never cached.
func (s *Service) GalleryCoverImage(ctx context.Context, galleryID string) (domain.GalleryImage, bool, error) {
	imgs, err := s.store.ImagesByGallery(ctx, galleryID)
	if err != nil {
		return domain.GalleryImage{}, false, err
	}
	if len(imgs) == 0 {
		return domain.GalleryImage{}, false, nil
	}
	return imgs[0], true, nil
}

// ImportImages analyzes every upload and, only once all analyses succeeded,
// persists the batch atomically. A failed analysis leaves the store
// untouched.
func (s *Service) ImportImages(ctx context.Context, galleryID string, uploads []Upload) ([]domain.GalleryImage, error) {
	if s.vision == nil {
		return nil, errors.New("no vision collaborator configured")
	}
	records := make([]domain.GalleryImage, 0, len(uploads))
	for i, up := range uploads {
		desc, err := s.vision.Analyze(ctx, up.Data, up.MimeType)
		if err != nil {
			return nil, fmt.Errorf("analyze upload %d: %w", i, err)
		}
		records = append(records, domain.GalleryImage{
			ID:          s.newID(),
			GalleryID:   galleryID,
			URL:         dataURL(up.MimeType, up.Data),
			Data:        up.Data,
			MimeType:    up.MimeType,
			Description: desc,
			Timestamp:   s.now(),
		})
	}
	if err := s.store.PutImages(ctx, records); err != nil {
		return nil, err
	}
	s.log.Info("images imported", slog.String("gallery", galleryID), slog.Int("count", len(records)))
	return records, nil
}

// GenerateImage asks the model for a new image matching the gallery's look,
// using the current cover as the reference, then analyzes and persists the
// result. Nothing is persisted when generation or analysis fails.
func (s *Service) GenerateImage(ctx context.Context, galleryID, prompt string) (domain.GalleryImage, error) {
	if s.vision == nil {
		return domain.GalleryImage{}, errors.New("no vision collaborator configured")
	}
	ref, ok, err := s.GalleryCoverImage(ctx, galleryID)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	if !ok {
		return domain.GalleryImage{}, fmt.Errorf("gallery %s has no reference image: %w", galleryID, ErrNotFound)
	}
	data, err := s.vision.GenerateFromReference(ctx, prompt, ref.Data, ref.MimeType)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	desc, err := s.vision.Analyze(ctx, data, generatedMimeType)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	img := domain.GalleryImage{
		ID:          s.newID(),
		GalleryID:   galleryID,
		URL:         dataURL(generatedMimeType, data),
		Data:        data,
		MimeType:    generatedMimeType,
		Description: desc,
		Timestamp:   s.now(),
	}
	if err := s.store.PutImage(ctx, img); err != nil {
		return domain.GalleryImage{}, err
	}
	return img, nil
}

// EditImage rewrites an existing image in place via the model. Identity, the
// owning gallery, and the creation timestamp never change; on any failure the
// original record is left untouched.
func (s *Service) EditImage(ctx context.Context, imageID, prompt string) (domain.GalleryImage, error) {
	if s.vision == nil {
		return domain.GalleryImage{}, errors.New("no vision collaborator configured")
	}
	img, ok, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	if !ok {
		return domain.GalleryImage{}, fmt.Errorf("image %s: %w", imageID, ErrNotFound)
	}
	data, err := s.vision.EditImage(ctx, prompt, img.Data, img.MimeType)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	desc, err := s.vision.Analyze(ctx, data, generatedMimeType)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	img.Data = data
	img.MimeType = generatedMimeType
	img.URL = dataURL(generatedMimeType, data)
	img.Description = desc
	if err := s.store.PutImage(ctx, img); err != nil {
		return domain.GalleryImage{}, err
	}
	return img, nil
}

// SuggestIdeas returns best-effort prompt ideas derived from the gallery's
// stored descriptions. It never writes; a collaborator failure leaves the
// store unaffected.
func (s *Service) SuggestIdeas(ctx context.Context, galleryID string) ([]domain.SuggestedIdea, error) {
	if s.vision == nil {
		return nil, errors.New("no vision collaborator configured")
	}
	imgs, err := s.store.ImagesByGallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	descs := make([]domain.ImageDescription, 0, len(imgs))
	for _, img := range imgs {
		descs = append(descs, img.Description)
	}
	return s.vision.SuggestIdeas(ctx, descs)
}

// generatedMimeType is the format the model returns generated and edited
// images in.
const generatedMimeType = "image/png"

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
