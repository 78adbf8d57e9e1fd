/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
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
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions carry document metadata.
type PDFOptions struct {
	Title  string
	Author string
}

// WritePDF places img on a single page the size of p, in millimetres, so the
// printed design matches the paper format.
func WritePDF(w io.Writer, img image.Image, p Preset, opt PDFOptions) error {
	if img == nil {
		return fmt.Errorf("nothing to export")
	}
	if p.WidthMM <= 0 || p.HeightMM <= 0 {
		p = A4
	}
	var raster bytes.Buffer
	if err := WritePNG(&raster, img); err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: p.WidthMM, Ht: p.HeightMM},
	})
	title := opt.Title
	if title == "" {
		title = "Garment design"
	}
	pdf.SetTitle(title, true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("garmentcanvas", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	const name = "design"
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &raster)
	pdf.ImageOptions(name, 0, 0, p.WidthMM, p.HeightMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
