/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the core data records for VibeMatch Gallery.
// All types are plain values with no live handles; the presentation layer may
// freely copy and compare them.
package domain

import "time"

// Gallery is a named, user-created collection of images.
// ID is generated at creation and immutable afterwards. UpdatedAt is stamped
// by the lifecycle service on every mutation and is never client-supplied.
type Gallery struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CoverImageID string    `json:"coverImageId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GalleryImage is one stored photograph owned by exactly one gallery.
// GalleryID is immutable after creation; the relationship to the gallery is
// expressed purely through it and re-resolved by query whenever needed.
// Timestamp is the creation time and the ordering key for all reads.
type GalleryImage struct {
	ID          string           `json:"id"`
	GalleryID   string           `json:"galleryId"`
	URL         string           `json:"url"` // renderable reference, e.g. a data URI
	Data        []byte           `json:"-"`   // raw encoded pixel payload
	MimeType    string           `json:"mimeType"`
	Description ImageDescription `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ImageDescription is the structured visual description produced by the
// external analysis model. The persistence layer stores and returns it
// unchanged.
type ImageDescription struct {
	Subject  string   `json:"subject"`
	Colors   []string `json:"colors"`
	Style    string   `json:"style"`
	Mood     string   `json:"mood"`
	Lighting string   `json:"lighting"`
	Elements []string `json:"elements"`
}

// SuggestedIdea is one best-effort prompt suggestion derived from the
// descriptions already stored for a gallery.
type SuggestedIdea struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}
