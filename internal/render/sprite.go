/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/textlayout"
)

// sprite is one layer painted in its local frame. Pixel (0,0) corresponds to
// origin in local canvas units; res is pixels per canvas unit.
type sprite struct {
	img    *image.RGBA
	origin geom.Pt
	res    float64
}

func (sp *sprite) rect(r geom.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round((r.X-sp.origin.X)*sp.res)),
		int(math.Round((r.Y-sp.origin.Y)*sp.res)),
		int(math.Round((r.X+r.W-sp.origin.X)*sp.res)),
		int(math.Round((r.Y+r.H-sp.origin.Y)*sp.res)),
	)
}

func (sp *sprite) fill(r geom.Rect, c color.Color) {
	draw.Draw(sp.img, sp.rect(r), image.NewUniform(c), image.Point{}, draw.Over)
}

func (sp *sprite) stroke(r geom.Rect, c color.Color) {
	ir := sp.rect(r)
	t := max(1, int(math.Round(sp.res)))
	u := image.NewUniform(c)
	for _, e := range []image.Rectangle{
		image.Rect(ir.Min.X, ir.Min.Y, ir.Max.X, ir.Min.Y+t),
		image.Rect(ir.Min.X, ir.Max.Y-t, ir.Max.X, ir.Max.Y),
		image.Rect(ir.Min.X, ir.Min.Y, ir.Min.X+t, ir.Max.Y),
		image.Rect(ir.Max.X-t, ir.Min.Y, ir.Max.X, ir.Max.Y),
	} {
		draw.Draw(sp.img, e, u, image.Point{}, draw.Over)
	}
}

// paintLayer builds the isolated surface of l. The surface covers the box,
// the glyph ink of text and, when selected, the handle squares. One pixel of
// slack on every side keeps bilinear edges from being clipped.
func (r *Renderer) paintLayer(l domain.Layer, selected bool, ov Overlay, opt Options) *sprite {
	f := l.Frame
	ext := f.Bounds()
	var hr geom.HandleRects
	if selected {
		hr = geom.Handles(f, opt.HandleSize)
		ext = hr.Extent(f)
	}
	if l.Kind == domain.KindText {
		ext = ext.Union(r.textInk(l))
	}
	if ext.W <= 0 || ext.H <= 0 {
		return nil
	}
	res := opt.Scale
	if px := ext.W * ext.H * res * res; px > float64(opt.MaxLayerPixels) {
		res = math.Sqrt(float64(opt.MaxLayerPixels) / (ext.W * ext.H))
		r.log.Debug("layer surface capped", slog.String("layer", string(l.ID)), slog.Float64("res", res))
	}
	pad := 1 / res
	ext = ext.Inset(-pad, -pad)
	sp := &sprite{origin: ext.Min(), res: res}
	sp.img = image.NewRGBA(image.Rect(0, 0, int(math.Ceil(ext.W*res)), int(math.Ceil(ext.H*res))))

	frameCol := opt.FrameColor
	if ov.Alert {
		frameCol = opt.AlertColor
	}
	if selected {
		for _, h := range geom.HitOrder {
			if ov.showHandle(h) {
				sp.fill(hr.Rect(h), frameCol)
			}
		}
	}

	switch l.Kind {
	case domain.KindImage:
		src := l.Image.Pixels
		draw.BiLinear.Scale(sp.img, sp.rect(f.Bounds()), src, src.Bounds(), draw.Over, nil)
	case domain.KindText:
		r.paintText(sp, l)
	}

	if selected {
		sp.stroke(f.Bounds(), frameCol)
	}
	return sp
}

// textInk is the local rect covered by the glyphs of l, descenders included.
// The baseline sits on the bottom edge of the box.
func (r *Renderer) textInk(l domain.Layer) geom.Rect {
	b := l.Frame.Bounds()
	if l.Text.Content == "" || l.Text.FontSize <= 0 {
		return b
	}
	spec := textlayout.SpecFor(l.Text)
	face, met := r.Fonts.Resolve(spec)
	k := 1.0
	if met.Size > 0 {
		k = spec.SizePx / met.Size
	}
	ink, _ := font.BoundString(face, l.Text.Content)
	base := b.Y + b.H
	x0 := b.X + float64(ink.Min.X)/64*k
	x1 := b.X + float64(ink.Max.X)/64*k
	y0 := base + float64(ink.Min.Y)/64*k
	y1 := base + max(float64(ink.Max.Y)/64, met.Descent)*k
	if x1 <= x0 || y1 <= y0 {
		return b
	}
	return geom.R(x0, y0, x1-x0, y1-y0)
}

// paintText draws the string with its baseline on the bottom edge of the box.
func (r *Renderer) paintText(sp *sprite, l domain.Layer) {
	if l.Text.Content == "" {
		return
	}
	spec := textlayout.SpecFor(l.Text)
	spec.SizePx = l.Text.FontSize * sp.res
	face, _ := r.Fonts.Resolve(spec)
	b := l.Frame.Bounds()
	d := &font.Drawer{
		Dst:  sp.img,
		Src:  image.NewUniform(l.Text.Color.NRGBA()),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(math.Round((b.X - sp.origin.X) * sp.res * 64)),
			Y: fixed.Int26_6(math.Round((b.Y + b.H - sp.origin.Y) * sp.res * 64)),
		},
	}
	d.DrawString(l.Text.Content)
}
