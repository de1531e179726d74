/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trpwrmusic/vibematch-gallery/internal/ai"
	"github.com/trpwrmusic/vibematch-gallery/internal/config"
	"github.com/trpwrmusic/vibematch-gallery/internal/crash"
	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
	"github.com/trpwrmusic/vibematch-gallery/internal/export"
	"github.com/trpwrmusic/vibematch-gallery/internal/gallery"
	applog "github.com/trpwrmusic/vibematch-gallery/internal/log"
	"github.com/trpwrmusic/vibematch-gallery/internal/storage"
	"github.com/trpwrmusic/vibematch-gallery/internal/version"
)

const usage = `vibematch <command> [args]

Commands:
  version                        print the application version
  galleries                      list galleries, newest first
  create <name> [description]    create a gallery
  images <gallery-id>            list a gallery's images, newest first
  import <gallery-id> <file>...  analyze and add image files to a gallery
  ideas <gallery-id>             suggest prompt ideas for a gallery
  export-pdf <gallery-id> <out>  write a PDF contact sheet
  export-zip <gallery-id> <out>  write a ZIP archive with manifest
`

func main() {
	args := os.Args
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		}
	}

	cfg, apiKey, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})

	root := cfg.Library.Root
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolve home dir: %v\n", err)
			os.Exit(1)
		}
		root = home
	}
	st, err := storage.Open(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open library: %v\n", err)
		os.Exit(1)
	}
	defer crash.Recover(st)

	vision, err := ai.New(ai.Config{
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
		APIKey:  apiKey,
		Timeout: cfg.Inference.EffectiveTimeout(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inference client: %v\n", err)
		os.Exit(1)
	}
	svc := gallery.NewService(st, vision)

	ctx := context.Background()
	if len(args) < 2 {
		fmt.Print(usage)
		return
	}
	if err := run(ctx, svc, args[1], args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *gallery.Service, cmd string, rest []string) error {
	switch cmd {
	case "galleries":
		gs, err := svc.LoadAllGalleries(ctx)
		if err != nil {
			return err
		}
		for _, g := range gs {
			n, err := svc.GalleryImageCount(ctx, g.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %-24s  %d image(s)\n", g.ID, g.Name, n)
		}
		return nil
	case "create":
		if len(rest) < 1 {
			return fmt.Errorf("usage: create <name> [description]")
		}
		desc := ""
		if len(rest) > 1 {
			desc = rest[1]
		}
		g, err := svc.CreateGallery(ctx, rest[0], desc)
		if err != nil {
			return err
		}
		fmt.Println(g.ID)
		return nil
	case "images":
		if len(rest) != 1 {
			return fmt.Errorf("usage: images <gallery-id>")
		}
		imgs, err := svc.LoadGalleryImages(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, img := range imgs {
			fmt.Printf("%s  %s  %s\n", img.ID, img.Timestamp.Format("2006-01-02 15:04:05"), img.Description.Subject)
		}
		return nil
	case "import":
		if len(rest) < 2 {
			return fmt.Errorf("usage: import <gallery-id> <file>...")
		}
		uploads := make([]gallery.Upload, 0, len(rest)-1)
		for _, path := range rest[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			uploads = append(uploads, gallery.Upload{Data: data, MimeType: mimeFromPath(path)})
		}
		imgs, err := svc.ImportImages(ctx, rest[0], uploads)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d image(s)\n", len(imgs))
		return nil
	case "ideas":
		if len(rest) != 1 {
			return fmt.Errorf("usage: ideas <gallery-id>")
		}
		ideas, err := svc.SuggestIdeas(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, idea := range ideas {
			fmt.Printf("%s: %s\n  prompt: %s\n", idea.ID, idea.Title, idea.Prompt)
		}
		return nil
	case "export-pdf":
		if len(rest) != 2 {
			return fmt.Errorf("usage: export-pdf <gallery-id> <out>")
		}
		g, imgs, err := loadGalleryForExport(ctx, svc, rest[0])
		if err != nil {
			return err
		}
		return export.GalleryContactSheet(g, imgs, rest[1], export.ContactSheetOptions{})
	case "export-zip":
		if len(rest) != 2 {
			return fmt.Errorf("usage: export-zip <gallery-id> <out>")
		}
		g, imgs, err := loadGalleryForExport(ctx, svc, rest[0])
		if err != nil {
			return err
		}
		return export.GalleryArchive(g, imgs, rest[1])
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadGalleryForExport(ctx context.Context, svc *gallery.Service, id string) (domain.Gallery, []domain.GalleryImage, error) {
	g, ok, err := svc.LoadGallery(ctx, id)
	if err != nil {
		return domain.Gallery{}, nil, err
	}
	if !ok {
		return domain.Gallery{}, nil, fmt.Errorf("gallery %q not found", id)
	}
	imgs, err := svc.LoadGalleryImages(ctx, id)
	if err != nil {
		return domain.Gallery{}, nil, err
	}
	return g, imgs, nil
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
