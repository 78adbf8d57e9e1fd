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
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the name offered for a PNG download.
const DefaultFileName = "design.png"

// Formats understood by Encode.
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("nothing to export")
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Encode writes img in format ("png" or "pdf"). PDF pages take the size of p.
func Encode(w io.Writer, format string, img image.Image, p Preset) error {
	switch normFormat(format) {
	case FormatPNG:
		return WritePNG(w, img)
	case FormatPDF:
		return WritePDF(w, img, p, PDFOptions{})
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// ContentType is the MIME type of format.
func ContentType(format string) string {
	if normFormat(format) == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// FormatFromPath guesses the format from a file extension, defaulting to PNG.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return FormatPDF
	}
	return FormatPNG
}

func normFormat(f string) string { return strings.ToLower(strings.TrimSpace(f)) }

// WriteFile encodes img into path, creating parent directories. The format
// follows the extension.
func WriteFile(path string, img image.Image, p Preset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatFromPath(path), img, p); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
