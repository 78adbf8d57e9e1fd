//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/geom"
)

var surround = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// DesignCanvas shows the editor's composite and feeds mouse input back to
// it as pointer events in canvas units.
type DesignCanvas struct {
	widget.BaseWidget
	ed      *editor.Editor
	pressed bool
}

var (
	_ desktop.Mouseable = (*DesignCanvas)(nil)
	_ desktop.Hoverable = (*DesignCanvas)(nil)
)

// NewDesignCanvas returns a canvas widget over ed.
func NewDesignCanvas(ed *editor.Editor) *DesignCanvas {
	dc := &DesignCanvas{ed: ed}
	dc.ExtendBaseWidget(dc)
	return dc
}

func (d *DesignCanvas) viewport() Viewport {
	sz := d.Size()
	return Viewport{Canvas: d.ed.Canvas(), Widget: geom.Size{W: float64(sz.Width), H: float64(sz.Height)}}
}

func (d *DesignCanvas) toCanvas(p fyne.Position) geom.Pt {
	return d.viewport().ToCanvas(geom.P(float64(p.X), float64(p.Y)))
}

// MouseDown starts a gesture or changes the selection.
func (d *DesignCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	d.pressed = true
	d.ed.PointerDown(d.toCanvas(e.Position))
}

// MouseUp ends the gesture.
func (d *DesignCanvas) MouseUp(e *desktop.MouseEvent) {
	if !d.pressed {
		return
	}
	d.pressed = false
	d.ed.PointerUp(d.toCanvas(e.Position))
}

func (d *DesignCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseMoved drives the running gesture.
func (d *DesignCanvas) MouseMoved(e *desktop.MouseEvent) {
	if d.pressed {
		d.ed.PointerMove(d.toCanvas(e.Position))
	}
}

// MouseOut ends the gesture like a release.
func (d *DesignCanvas) MouseOut() {
	if d.pressed {
		d.pressed = false
		d.ed.PointerLeave()
	}
}

// MinSize keeps the canvas usable on small windows.
func (d *DesignCanvas) MinSize() fyne.Size { return fyne.NewSize(320, 450) }

// CreateRenderer paints the composite into a raster sized to the widget.
func (d *DesignCanvas) CreateRenderer() fyne.WidgetRenderer {
	raster := canvas.NewRaster(d.paint)
	return &designCanvasRenderer{dc: d, raster: raster, objects: []fyne.CanvasObject{raster}}
}

// paint renders at the raster's pixel density and centers the result.
func (d *DesignCanvas) paint(w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	vp := Viewport{Canvas: d.ed.Canvas(), Widget: geom.Size{W: float64(w), H: float64(h)}}
	img := d.ed.Render(vp.Zoom())
	o := vp.Origin()
	at := image.Pt(int(o.X), int(o.Y))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(surround), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, img.Bounds().Add(at), image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(dst, img.Bounds().Add(at), img, image.Point{}, xdraw.Over)
	return dst
}

type designCanvasRenderer struct {
	dc      *DesignCanvas
	raster  *canvas.Raster
	objects []fyne.CanvasObject
}

func (r *designCanvasRenderer) Destroy()                     {}
func (r *designCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *designCanvasRenderer) MinSize() fyne.Size           { return r.dc.MinSize() }
func (r *designCanvasRenderer) Refresh()                     { canvas.Refresh(r.raster) }

func (r *designCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
}
