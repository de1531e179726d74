/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
)

// ContactSheetOptions controls PDF contact sheet export behavior.
// Units are points (pt). Built-in Helvetica keeps text vector without
// embedding; images are downscaled into fixed-size thumbnail cells.
//
//nolint:revive // keep options grouped and explicit for clarity
type ContactSheetOptions struct {
	Columns  int     // cells per row, default 3
	CellSize float64 // thumbnail box edge in pt, default 150
	Margin   float64 // page margin in pt, default 36
	Title    string  // overrides the gallery name in the sheet header
}

// GalleryContactSheet renders the given gallery records into a multi-page A4
// PDF at outPath: one thumbnail cell per image in the given order, captioned
// with the image subject. Callers pass records in display order (the lifecycle
// service returns them newest first); this package never reads the store.
// Images the decoder does not understand get an empty cell with the caption
// only; a broken blob must not sink the whole sheet.
func GalleryContactSheet(g domain.Gallery, imgs []domain.GalleryImage, outPath string, opt ContactSheetOptions) error {
	cols := opt.Columns
	if cols <= 0 {
		cols = 3
	}
	cell := opt.CellSize
	if cell <= 0 {
		cell = 150
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 36
	}
	title := opt.Title
	if title == "" {
		title = g.Name
	}

	const captionH = 16.0
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s — Contact Sheet", title), true)
	pdf.SetAuthor("VibeMatch Gallery", false)
	pdf.SetFont("Helvetica", "", 10)

	pageW, pageH := pdf.GetPageSize()
	usableW := pageW - 2*margin
	gap := (usableW - float64(cols)*cell) / float64(cols+1)
	if gap < 0 {
		gap = 0
	}

	newPage := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Text(margin, margin, title)
		pdf.SetFont("Helvetica", "", 10)
	}
	newPage()

	x := margin + gap
	y := margin + 24
	col := 0
	for i, img := range imgs {
		if y+cell+captionH > pageH-margin {
			newPage()
			x = margin + gap
			y = margin + 24
			col = 0
		}
		placeThumbnail(pdf, img, fmt.Sprintf("img-%d", i), x, y, cell)
		caption := img.Description.Subject
		if caption == "" {
			caption = img.ID
		}
		pdf.Text(x, y+cell+12, truncateCaption(pdf, caption, cell))

		col++
		if col >= cols {
			col = 0
			x = margin + gap
			y += cell + captionH + gap
		} else {
			x += cell + gap
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// placeThumbnail decodes, downscales and registers one image; on decode
// failure it draws the empty cell frame instead.
func placeThumbnail(pdf *gofpdf.Fpdf, img domain.GalleryImage, name string, x, y, cell float64) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Rect(x, y, cell, cell, "D")

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return
	}
	thumb := scaleToFit(src, 256)
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, thumb); err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, buf)

	// Fit inside the cell preserving aspect ratio.
	b := thumb.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := cell / w
	if s := cell / h; s < scale {
		scale = s
	}
	dw, dh := w*scale, h*scale
	pdf.ImageOptions(name, x+(cell-dw)/2, y+(cell-dh)/2, dw, dh, false, opts, 0, "")
}

// scaleToFit downsamples so the longer edge is at most maxEdge pixels.
func scaleToFit(src image.Image, maxEdge int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Copy(out, image.Point{}, src, b, xdraw.Over, nil)
		return out
	}
	var dw, dh int
	if w >= h {
		dw = maxEdge
		dh = h * maxEdge / w
	} else {
		dh = maxEdge
		dw = w * maxEdge / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, b, xdraw.Over, nil)
	return out
}

func truncateCaption(pdf *gofpdf.Fpdf, s string, maxW float64) string {
	if pdf.GetStringWidth(s) <= maxW {
		return s
	}
	r := []rune(s)
	for len(r) > 1 && pdf.GetStringWidth(string(r)+"…") > maxW {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
