/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout resolves font families to faces and measures single-line
// text. Text layers derive their box from it: width is the advance of the
// string, height is the font size.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string  // logical family name, matched case-insensitively
	SizePx float64 // em size in canvas units
	Weight int     // 400 regular, 700 bold
	Italic bool
}

// Metrics are the metrics of a resolved face in pixels. Size is the em size
// the face was built for; fixed-size faces report their native size.
type Metrics struct {
	Size                     float64
	Ascent, Descent, LineGap float64
}

// Provider maps a FontSpec to a concrete face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// SpecFor returns the font request for a text payload.
func SpecFor(t domain.Text) FontSpec {
	spec := FontSpec{Family: t.FontFamily, SizePx: t.FontSize, Weight: 400}
	switch t.Style {
	case domain.StyleBold:
		spec.Weight = 700
	case domain.StyleItalic:
		spec.Italic = true
	}
	return spec
}

func normFamily(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// BasicProvider uses the fixed 7x13 basicfont face for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Size:    13,
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// Advance is the horizontal advance of s in pixels at the face's size.
func Advance(face font.Face, s string) float64 {
	d := &font.Drawer{Face: face}
	return float64(d.MeasureString(s)) / 64
}

// Measure returns the width of s rendered with spec, scaled from the face
// size to spec.SizePx, and the line height (spec.SizePx).
func Measure(p Provider, spec FontSpec, s string) (w, h float64) {
	if p == nil {
		p = BasicProvider{}
	}
	if spec.SizePx <= 0 {
		spec.SizePx = domain.DefaultFontSize
	}
	face, met := p.Resolve(spec)
	w = Advance(face, s)
	if met.Size > 0 && met.Size != spec.SizePx {
		w *= spec.SizePx / met.Size
	}
	return w, spec.SizePx
}

// Measurer derives text layer boxes from a Provider.
type Measurer struct{ Provider Provider }

// MeasureText implements domain.TextMeasurer.
func (m Measurer) MeasureText(t domain.Text) geom.Size {
	w, h := Measure(m.Provider, SpecFor(t), t.Content)
	return geom.Size{W: w, H: h}
}

var _ domain.TextMeasurer = Measurer{}
