/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns the layer stack into pixels. Each layer is painted in
// its own local frame into an isolated surface (handles, then content, then
// the selection outline) and that surface is composited onto the canvas
// through the layer transform. Nothing set up for one layer leaks into the
// next.
package render

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/layers"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/textlayout"
)

// Overlay is the interaction state drawn on top of the selected layer.
type Overlay struct {
	Selected domain.LayerID
	// Gesture is set while a pointer gesture runs; only Active is drawn then.
	Gesture bool
	Active  geom.Handle
	// Alert paints the frame and handle in the alert color (pending delete).
	Alert bool
}

func (o Overlay) showHandle(h geom.Handle) bool { return !o.Gesture || o.Active == h }

// Options control output resolution and colors. Zero values pick defaults.
type Options struct {
	// Scale maps canvas units to output pixels (export uses the canvas
	// scale factor here to get full resolution).
	Scale         float64
	Background    color.Color // nil leaves the destination untouched
	HandleSize    float64
	FrameColor    color.Color
	AlertColor    color.Color
	HideSelection bool
	// MaxLayerPixels caps the isolated surface of one layer.
	MaxLayerPixels int
}

const defaultMaxLayerPixels = 8192 * 8192

// MaxOutputPixels bounds the image Render allocates.
const MaxOutputPixels = 8192 * 8192

// OutputSize is the pixel size of canvas rendered at scale.
func OutputSize(canvas geom.Size, scale float64) (w, h int) {
	return max(outputPixels(canvas.W*scale), 0), max(outputPixels(canvas.H*scale), 0)
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 || math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) {
		o.Scale = 1
	}
	if o.HandleSize <= 0 {
		o.HandleSize = geom.DefaultHandleSize
	}
	if o.FrameColor == nil {
		o.FrameColor = domain.Black.NRGBA()
	}
	if o.AlertColor == nil {
		o.AlertColor = domain.Red.NRGBA()
	}
	if o.MaxLayerPixels <= 0 {
		o.MaxLayerPixels = defaultMaxLayerPixels
	}
	return o
}

// Renderer paints layers. It holds a font provider and is therefore bound to
// one goroutine at a time.
type Renderer struct {
	Fonts textlayout.Provider
	// Interpolator resamples layer surfaces onto the canvas.
	Interpolator draw.Transformer
	log          *slog.Logger
}

// New returns a renderer drawing text with fonts (BasicProvider when nil).
func New(fonts textlayout.Provider) *Renderer {
	if fonts == nil {
		fonts = textlayout.BasicProvider{}
	}
	return &Renderer{Fonts: fonts, Interpolator: draw.BiLinear, log: applog.WithComponent("render")}
}

// Measurer returns a text measurer backed by the renderer's fonts, so that
// the measured box and the drawn glyphs agree.
func (r *Renderer) Measurer() textlayout.Measurer { return textlayout.Measurer{Provider: r.Fonts} }

// SyncText re-measures every text layer and stores the derived size. It
// reports whether any size changed.
func SyncText(s *layers.Store, m domain.TextMeasurer) bool {
	if m == nil {
		return false
	}
	changed := false
	for _, id := range s.IDs() {
		s.Update(id, func(l *domain.Layer) {
			if l.SyncTextSize(m) {
				changed = true
			}
		})
	}
	return changed
}

// RenderStore measures text layers, then renders the store.
func (r *Renderer) RenderStore(canvas geom.Size, s *layers.Store, ov Overlay, opt Options) *image.RGBA {
	SyncText(s, r.Measurer())
	return r.Render(canvas, s.All(), ov, opt)
}

// Render allocates an output image for the canvas at opt.Scale and draws the
// layers (bottom-to-top) onto it.
func (r *Renderer) Render(canvas geom.Size, ls []domain.Layer, ov Overlay, opt Options) *image.RGBA {
	opt = opt.withDefaults()
	w, h := OutputSize(canvas, opt.Scale)
	if float64(w)*float64(h) > MaxOutputPixels {
		k := math.Sqrt(MaxOutputPixels / (canvas.W * canvas.H * opt.Scale * opt.Scale))
		r.log.Warn("output capped", slog.Int("w", w), slog.Int("h", h), slog.Float64("scale", opt.Scale*k))
		opt.Scale *= k
		w, h = OutputSize(canvas, opt.Scale)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	r.Draw(dst, ls, ov, opt)
	return dst
}

// Draw composites ls onto dst, whose origin is the canvas origin.
func (r *Renderer) Draw(dst draw.Image, ls []domain.Layer, ov Overlay, opt Options) {
	opt = opt.withDefaults()
	if opt.Background != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(opt.Background), image.Point{}, draw.Src)
	}
	interp := r.Interpolator
	if interp == nil {
		interp = draw.BiLinear
	}
	for _, l := range ls {
		if !l.Drawable() {
			continue
		}
		selected := !opt.HideSelection && ov.Selected != "" && l.ID == ov.Selected
		sp := r.paintLayer(l, selected, ov, opt)
		if sp == nil {
			continue
		}
		s2d := geom.Scale(opt.Scale, opt.Scale).
			Mul(l.Frame.Transform()).
			Mul(geom.Translate(sp.origin.X, sp.origin.Y)).
			Mul(geom.Scale(1/sp.res, 1/sp.res))
		interp.Transform(dst, aff3(s2d), sp.img, sp.img.Bounds(), draw.Over, nil)
	}
}

func aff3(m geom.Affine2D) f64.Aff3 { return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F} }

// outputPixels rounds up, ignoring float noise from preset/scale round trips
// such as 794/3*3.
func outputPixels(v float64) int { return int(math.Ceil(v - 1e-6)) }
