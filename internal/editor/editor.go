/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor wires the layer store, the gesture machine, the renderer and
// the asynchronous image loader into the object a UI event loop drives.
//
// An Editor is owned by one goroutine. Image decodes are the only work that
// runs elsewhere; their results come back through Completions and are
// applied with ApplyCompletion on the owning goroutine.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/gesture"
	"garmentcanvas/internal/imagesource"
	"garmentcanvas/internal/layers"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/render"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/textlayout"
)

// PixelsPerMM is the 96 dpi conversion used by the millimetre entry and the
// resize step buttons.
const PixelsPerMM = 3.78

// Config holds the canvas and property-panel settings.
type Config struct {
	// Canvas is the design surface in canvas units.
	Canvas geom.Size
	// Scale is the canvas scale factor: exported pixels per canvas unit, and
	// the divisor applied to natural image sizes.
	Scale      float64
	Gesture    gesture.Config
	NudgeStep  float64
	ResizeStep float64
	// Background fills exports; nil keeps them transparent.
	Background color.Color
}

// DefaultConfig is an A4 canvas at scale 3.
func DefaultConfig() Config {
	return Config{
		Canvas:     geom.Size{W: 794.0 / 3, H: 1123.0 / 3},
		Scale:      3,
		Gesture:    gesture.DefaultConfig(),
		NudgeStep:  2,
		ResizeStep: PixelsPerMM,
	}
}

// ErrCanvasTooLarge is returned by Validate when an export would exceed
// render.MaxOutputPixels.
var ErrCanvasTooLarge = errors.New("canvas too large")

// Validate rejects a scale or canvas that is not finite and positive, and
// canvases whose export would not fit render.MaxOutputPixels.
func (c Config) Validate() error {
	for _, v := range []float64{c.Scale, c.Canvas.W, c.Canvas.H} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("canvas %vx%v at scale %v: not a positive size", c.Canvas.W, c.Canvas.H, c.Scale)
		}
	}
	w, h := render.OutputSize(c.Canvas, c.Scale)
	if float64(w)*float64(h) > render.MaxOutputPixels {
		return fmt.Errorf("export %dx%d px: %w", w, h, ErrCanvasTooLarge)
	}
	return nil
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Canvas.W <= 0 || c.Canvas.H <= 0 {
		c.Canvas = d.Canvas
	}
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	if c.NudgeStep == 0 {
		c.NudgeStep = d.NudgeStep
	}
	if c.ResizeStep == 0 {
		c.ResizeStep = d.ResizeStep
	}
	return c
}

// Option customizes an Editor.
type Option func(*Editor)

// WithDecoder sets the image decoder used for AddImage. Without one, image
// layers stay pending until a completion is applied by hand.
func WithDecoder(dec imagesource.ImageDecoder) Option {
	return func(e *Editor) { e.decoder = dec }
}

// WithFonts sets the font provider used for measuring and drawing text.
func WithFonts(p textlayout.Provider) Option {
	return func(e *Editor) { e.fonts = p }
}

// WithInvalidate registers the callback run once after every state change.
func WithInvalidate(fn func()) Option {
	return func(e *Editor) { e.invalidate = fn }
}

// WithTracker sends usage events to t.
func WithTracker(t telemetry.Tracker) Option {
	return func(e *Editor) { e.tracker = t }
}

// Editor is the canvas editing core.
type Editor struct {
	cfg        Config
	store      *layers.Store
	machine    *gesture.Machine
	renderer   *render.Renderer
	measure    domain.TextMeasurer
	fonts      textlayout.Provider
	decoder    imagesource.ImageDecoder
	loader     *imagesource.Loader
	invalidate func()
	tracker    telemetry.Tracker
	log        *slog.Logger
}

// New returns an empty editor.
func New(cfg Config, opts ...Option) *Editor {
	e := &Editor{
		cfg:   cfg.normalized(),
		store: layers.New(),
		log:   applog.WithComponent("editor"),
	}
	for _, o := range opts {
		o(e)
	}
	e.renderer = render.New(e.fonts)
	e.measure = e.renderer.Measurer()
	e.machine = gesture.New(e.store, e.cfg.Gesture, e.measure)
	if e.decoder != nil {
		e.loader = imagesource.NewLoader(e.decoder, 0)
	}
	return e
}

// Close stops in-flight decodes.
func (e *Editor) Close() {
	if e.loader != nil {
		e.loader.Close()
	}
}

// Config returns the effective configuration.
func (e *Editor) Config() Config { return e.cfg }

// Store exposes the layer store for read access. Mutating it directly skips
// invalidation and text measurement.
func (e *Editor) Store() *layers.Store { return e.store }

// Canvas is the design surface size in canvas units.
func (e *Editor) Canvas() geom.Size { return e.cfg.Canvas }

// SetCanvas changes the design surface. Layers keep their positions.
func (e *Editor) SetCanvas(sz geom.Size) {
	next := e.cfg
	next.Canvas = sz
	if sz == e.cfg.Canvas || next.Validate() != nil {
		return
	}
	e.cfg.Canvas = sz
	e.changed()
}

func (e *Editor) changed() {
	if e.invalidate != nil {
		e.invalidate()
	}
}

func (e *Editor) event(name string, props map[string]any) {
	if e.tracker != nil {
		e.tracker.Event(name, props)
	}
}

// AddText adds a text layer at the default position and selects it. An
// empty content gets the default text.
func (e *Editor) AddText(content string) domain.LayerID {
	return e.AddTextAt(content, domain.DefaultPosition)
}

// AddTextAt adds a text layer centered at at and selects it.
func (e *Editor) AddTextAt(content string, at geom.Pt) domain.LayerID {
	if content == "" {
		content = domain.DefaultText
	}
	l := domain.NewTextLayer(content, at)
	l.SyncTextSize(e.measure)
	id := e.store.Add(l)
	e.store.Select(id)
	e.log.Debug("layer added", slog.String("layer", string(id)), slog.String("kind", "text"))
	e.event(telemetry.EventLayerAdded, map[string]any{"kind": "text"})
	e.changed()
	return id
}

// AddImage adds a pending image layer at the default position, selects it
// and starts decoding src.
func (e *Editor) AddImage(ctx context.Context, src imagesource.Source) domain.LayerID {
	return e.AddImageAt(ctx, src, domain.DefaultPosition)
}

// AddImageAt is AddImage with an explicit center.
func (e *Editor) AddImageAt(ctx context.Context, src imagesource.Source, at geom.Pt) domain.LayerID {
	id := e.store.Add(domain.NewImageLayer(src.Ref, at))
	e.store.Select(id)
	e.log.Debug("layer added", slog.String("layer", string(id)), slog.String("kind", "image"))
	e.event(telemetry.EventLayerAdded, map[string]any{"kind": "image"})
	if e.loader != nil {
		e.loader.Load(ctx, id, src)
	}
	e.changed()
	return id
}

// Select selects id. An unknown id clears the selection.
func (e *Editor) Select(id domain.LayerID) bool {
	prev, _ := e.store.SelectedID()
	e.store.Select(id)
	cur, ok := e.store.SelectedID()
	if cur != prev {
		e.changed()
	}
	return ok
}

// ClearSelection deselects everything.
func (e *Editor) ClearSelection() {
	if _, ok := e.store.SelectedID(); ok {
		e.store.ClearSelection()
		e.changed()
	}
}

// Selected returns the selected layer id.
func (e *Editor) Selected() (domain.LayerID, bool) { return e.store.SelectedID() }

// Layer returns a copy of the layer with id.
func (e *Editor) Layer(id domain.LayerID) (domain.Layer, bool) { return e.store.Get(id) }

// MoveUp raises id by one step in the paint order.
func (e *Editor) MoveUp(id domain.LayerID) bool {
	if !e.store.MoveUp(id) {
		return false
	}
	e.changed()
	return true
}

// MoveDown lowers id by one step in the paint order.
func (e *Editor) MoveDown(id domain.LayerID) bool {
	if !e.store.MoveDown(id) {
		return false
	}
	e.changed()
	return true
}

// Delete removes id. A gesture running on it is dropped.
func (e *Editor) Delete(id domain.LayerID) bool {
	if _, ok := e.store.Get(id); !ok {
		return false
	}
	if s := e.machine.Session(); s.Active() && s.LayerID == id {
		e.machine.Cancel()
	}
	e.store.Remove(id)
	e.event(telemetry.EventLayerDeleted, nil)
	e.changed()
	return true
}

// LayerInfo is one row of the layer list.
type LayerInfo struct {
	ID       domain.LayerID `json:"id"`
	Kind     string         `json:"kind"`
	Label    string         `json:"label"`
	Selected bool           `json:"selected"`
}

// Layers lists the layers top-to-bottom for display.
func (e *Editor) Layers() []LayerInfo {
	sel, _ := e.store.SelectedID()
	ls := e.store.OrderedTopToBottom()
	out := make([]LayerInfo, 0, len(ls))
	for _, l := range ls {
		out = append(out, LayerInfo{ID: l.ID, Kind: l.Kind.String(), Label: l.Label(), Selected: l.ID == sel})
	}
	return out
}

// Mode is the current gesture mode.
func (e *Editor) Mode() gesture.Mode { return e.machine.Mode() }

// PointerDown forwards a press in canvas coordinates to the gesture machine.
func (e *Editor) PointerDown(p geom.Pt) gesture.Outcome {
	out := e.machine.PointerDown(p)
	if out.Changed || out.Mode != gesture.Idle {
		e.changed()
	}
	return out
}

// PointerMove forwards a move to the gesture machine.
func (e *Editor) PointerMove(p geom.Pt) gesture.Outcome {
	out := e.machine.PointerMove(p)
	if out.Changed {
		e.changed()
	}
	return out
}

// PointerUp ends the current gesture.
func (e *Editor) PointerUp(p geom.Pt) gesture.Outcome {
	active := e.machine.Session().Active()
	return e.finish(e.machine.PointerUp(p), active)
}

// PointerLeave ends the current gesture as if released.
func (e *Editor) PointerLeave() gesture.Outcome {
	active := e.machine.Session().Active()
	return e.finish(e.machine.PointerLeave(), active)
}

func (e *Editor) finish(out gesture.Outcome, wasActive bool) gesture.Outcome {
	switch {
	case out.Deleted != "":
		e.event(telemetry.EventLayerDeleted, nil)
	case out.Copied != "":
		e.event(telemetry.EventLayerCopied, nil)
	}
	if out.Changed || wasActive {
		// the overlay changes when a gesture ends even if nothing moved
		e.changed()
	}
	return out
}

// Overlay is the interaction state the renderer draws.
func (e *Editor) Overlay() render.Overlay {
	sel, _ := e.store.SelectedID()
	mode := e.machine.Mode()
	return render.Overlay{
		Selected: sel,
		Gesture:  mode != gesture.Idle,
		Active:   mode.ActiveHandle(),
		Alert:    mode == gesture.Deleting,
	}
}

// Render draws the canvas with the selection overlay at scale output pixels
// per canvas unit.
func (e *Editor) Render(scale float64) *image.RGBA {
	return e.renderer.RenderStore(e.cfg.Canvas, e.store, e.Overlay(), render.Options{
		Scale:      scale,
		Background: e.cfg.Background,
		HandleSize: e.machine.Config().HandleSize,
	})
}

// ExportImage renders the design at full resolution without any selection
// decoration.
func (e *Editor) ExportImage() *image.RGBA {
	img := e.renderer.RenderStore(e.cfg.Canvas, e.store, render.Overlay{}, render.Options{
		Scale:         e.cfg.Scale,
		Background:    e.cfg.Background,
		HideSelection: true,
	})
	b := img.Bounds()
	e.event(telemetry.EventRender, map[string]any{"w": b.Dx(), "h": b.Dy(), "layers": e.store.Len()})
	return img
}

// snapshotLayer is the diagnostic view of one layer.
type snapshotLayer struct {
	ID       domain.LayerID `json:"id"`
	Kind     string         `json:"kind"`
	CenterX  float64        `json:"cx"`
	CenterY  float64        `json:"cy"`
	Width    float64        `json:"w"`
	Height   float64        `json:"h"`
	Rotation float64        `json:"rotation"`
	Source   string         `json:"source,omitempty"`
	State    string         `json:"state,omitempty"`
	Text     string         `json:"text,omitempty"`
	FontSize float64        `json:"font_size,omitempty"`
	Color    string         `json:"color,omitempty"`
	Family   string         `json:"font_family,omitempty"`
	Style    string         `json:"style,omitempty"`
}

// Snapshot encodes the layer list, bottom-to-top, as JSON. Crash reports
// attach it so a broken design can be reproduced.
func (e *Editor) Snapshot() ([]byte, error) {
	sel, _ := e.store.SelectedID()
	doc := struct {
		CanvasW  float64         `json:"canvas_w"`
		CanvasH  float64         `json:"canvas_h"`
		Selected domain.LayerID  `json:"selected,omitempty"`
		Mode     string          `json:"mode"`
		Layers   []snapshotLayer `json:"layers"`
	}{CanvasW: e.cfg.Canvas.W, CanvasH: e.cfg.Canvas.H, Selected: sel, Mode: e.machine.Mode().String()}
	for _, l := range e.store.All() {
		s := snapshotLayer{
			ID: l.ID, Kind: l.Kind.String(),
			CenterX: l.Frame.Center.X, CenterY: l.Frame.Center.Y,
			Width: l.Frame.Size.W, Height: l.Frame.Size.H, Rotation: l.Frame.Rotation,
		}
		if l.Kind == domain.KindImage {
			s.Source, s.State = l.Image.Source, l.Image.State.String()
		} else {
			s.Text, s.FontSize = l.Text.Content, l.Text.FontSize
			s.Color, s.Family, s.Style = l.Text.Color.Hex(), l.Text.FontFamily, l.Text.Style.String()
		}
		doc.Layers = append(doc.Layers, s)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
