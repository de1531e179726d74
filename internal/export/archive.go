/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
	"github.com/trpwrmusic/vibematch-gallery/internal/storage"
)

// manifestEntry describes one archived image inside gallery.json.
type manifestEntry struct {
	ID          string                  `json:"id"`
	File        string                  `json:"file"`
	URL         string                  `json:"url,omitempty"`
	MimeType    string                  `json:"mimeType"`
	Timestamp   string                  `json:"timestamp"`
	Description domain.ImageDescription `json:"description"`
}

type archiveManifest struct {
	Gallery domain.Gallery  `json:"gallery"`
	Images  []manifestEntry `json:"images"`
}

// GalleryArchive packages the given gallery records into a ZIP at outPath:
// image blobs as numbered files plus a gallery.json manifest carrying the
// metadata the blobs alone would lose. Entries keep the given record order;
// callers pass them the way a reader of the gallery sees them, newest first.
// Only the storage package's timestamp layout is used here, never the store.
func GalleryArchive(g domain.Gallery, imgs []domain.GalleryImage, outPath string) error {
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath = outPath + ".zip"
	}
	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	// Zero padding width based on count
	pad := 1
	switch n := len(imgs); {
	case n >= 1000:
		pad = 4
	case n >= 100:
		pad = 3
	case n >= 10:
		pad = 2
	}

	manifest := archiveManifest{Gallery: g, Images: make([]manifestEntry, 0, len(imgs))}
	for i, img := range imgs {
		name := fmt.Sprintf("images/%0*d%s", pad, i+1, extensionFor(img.MimeType))
		if err := addZipFile(zw, name, img.Data); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
		manifest.Images = append(manifest.Images, manifestEntry{
			ID:          img.ID,
			File:        name,
			URL:         img.URL,
			MimeType:    img.MimeType,
			Timestamp:   img.Timestamp.UTC().Format(storage.TimeLayout),
			Description: img.Description,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "gallery.json", data); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create archive: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
