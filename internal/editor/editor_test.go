/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/gesture"
	"garmentcanvas/internal/imagesource"
	"garmentcanvas/internal/textlayout"
)

type fakeDecoder struct {
	size image.Point
	err  error
}

func (d fakeDecoder) Decode(ctx context.Context, src imagesource.Source) (imagesource.Decoded, error) {
	if d.err != nil {
		return imagesource.Decoded{}, d.err
	}
	img := image.NewNRGBA(image.Rect(0, 0, d.size.X, d.size.Y))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return imagesource.Decoded{Image: img, Format: "png", Natural: d.size}, nil
}

type recorder struct{ events []string }

func (r *recorder) Event(name string, _ map[string]any) { r.events = append(r.events, name) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAddTextMeasuresAndSelects(t *testing.T) {
	invalidations := 0
	e := New(DefaultConfig(), WithInvalidate(func() { invalidations++ }))
	defer e.Close()

	id := e.AddText("Hi")
	if sel, ok := e.Selected(); !ok || sel != id {
		t.Fatalf("new text should be selected, got %q", sel)
	}
	l, _ := e.Layer(id)
	if l.Frame.Center != domain.DefaultPosition {
		t.Errorf("center = %v", l.Frame.Center)
	}
	wantW, wantH := textlayout.Measure(textlayout.BasicProvider{}, textlayout.SpecFor(l.Text), "Hi")
	if !near(l.Frame.Size.W, wantW) || !near(l.Frame.Size.H, 20) || !near(wantH, 20) {
		t.Errorf("size = %+v, want %vx20", l.Frame.Size, wantW)
	}
	if invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", invalidations)
	}

	def, _ := e.Layer(e.AddText(""))
	if def.Text.Content != domain.DefaultText {
		t.Errorf("empty content should get the default text, got %q", def.Text.Content)
	}
}

func TestTextPropertiesRemeasure(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddText("Hi")
	before, _ := e.Layer(id)

	if !e.SetText(id, "Hello there") {
		t.Fatal("SetText not applied")
	}
	after, _ := e.Layer(id)
	if after.Frame.Size.W <= before.Frame.Size.W {
		t.Errorf("longer text should widen the box: %v -> %v", before.Frame.Size.W, after.Frame.Size.W)
	}
	e.SetText(id, "")
	empty, _ := e.Layer(id)
	if empty.Frame.Size.W != 0 || empty.Frame.Size.H != 20 {
		t.Errorf("empty text box = %+v", empty.Frame.Size)
	}

	e.SetFontSize(id, 40)
	l, _ := e.Layer(id)
	if l.Frame.Size.H != 40 {
		t.Errorf("height should follow font size, got %v", l.Frame.Size.H)
	}
	e.SetFontSize(id, -5)
	l, _ = e.Layer(id)
	if l.Text.FontSize != 1 {
		t.Errorf("font size should clamp to 1, got %v", l.Text.FontSize)
	}

	c, _ := domain.ParseColor("#ff0000")
	e.SetColor(id, c)
	e.SetFontFamily(id, "Courier New")
	e.SetTextStyle(id, domain.StyleItalic)
	l, _ = e.Layer(id)
	if l.Text.Color != c || l.Text.FontFamily != "Courier New" || l.Text.Style != domain.StyleItalic {
		t.Errorf("text props not applied: %+v", l.Text)
	}
	if e.SetFontFamily(id, "  ") {
		t.Error("blank family should be rejected")
	}
}

func TestTextSettersIgnoreImagesAndUnknownIDs(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	img := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	if e.SetText(img, "x") || e.SetFontSize(img, 30) {
		t.Error("text setters must not apply to image layers")
	}
	if e.SetText("missing", "x") || e.Nudge("missing", 1, 0) || e.Delete("missing") {
		t.Error("unknown ids must be no-ops")
	}
	if e.SetImageSize(e.AddText("t"), 10, 10) {
		t.Error("image size must not apply to text layers")
	}
}

func TestImageCompletionUsesNaturalSizeOverScale(t *testing.T) {
	rec := &recorder{}
	invalidations := 0
	e := New(DefaultConfig(),
		WithDecoder(fakeDecoder{size: image.Pt(300, 150)}),
		WithTracker(rec),
		WithInvalidate(func() { invalidations++ }))
	defer e.Close()

	id := e.AddImage(context.Background(), imagesource.Ref("shirt.png"))
	l, _ := e.Layer(id)
	if l.Image.State != domain.ImagePending || l.Drawable() {
		t.Fatalf("new image should be pending: %+v", l.Image)
	}
	if err := e.WaitPending(waitCtx(t)); err != nil {
		t.Fatalf("WaitPending: %v", err)
	}
	l, _ = e.Layer(id)
	if l.Image.State != domain.ImageReady || !l.Drawable() {
		t.Fatalf("image not ready: %+v", l.Image.State)
	}
	if !near(l.Frame.Size.W, 100) || !near(l.Frame.Size.H, 50) {
		t.Errorf("size = %+v, want 100x50", l.Frame.Size)
	}
	if invalidations != 2 {
		t.Errorf("invalidations = %d, want add + completion", invalidations)
	}
	if len(rec.events) == 0 || rec.events[0] != "layer_added" {
		t.Errorf("events = %v", rec.events)
	}
	if e.Pending() != 0 {
		t.Errorf("pending = %d", e.Pending())
	}
}

func TestUserSizeSurvivesCompletion(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	e.SetImageSize(id, 40, 0)
	e.ApplyCompletion(imagesource.Completion{
		LayerID: id,
		Result:  imagesource.Decoded{Image: image.NewNRGBA(image.Rect(0, 0, 300, 300)), Natural: image.Pt(300, 300)},
	})
	l, _ := e.Layer(id)
	if l.Frame.Size != (geom.Size{W: 40, H: 100}) {
		t.Errorf("size = %+v, want user width kept", l.Frame.Size)
	}
}

func TestFailedDecodeLeavesLayerInert(t *testing.T) {
	e := New(DefaultConfig(), WithDecoder(fakeDecoder{err: errors.New("boom")}))
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("bad.png"))
	if err := e.WaitPending(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	l, ok := e.Layer(id)
	if !ok || l.Image.State != domain.ImageFailed || l.Image.Err == "" || l.Drawable() {
		t.Fatalf("layer = %+v", l.Image)
	}
}

func TestCompletionForRemovedLayerIsDropped(t *testing.T) {
	invalidations := 0
	e := New(DefaultConfig(), WithInvalidate(func() { invalidations++ }))
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	e.Delete(id)
	before := invalidations
	if e.ApplyCompletion(imagesource.Completion{LayerID: id, Result: imagesource.Decoded{Natural: image.Pt(3, 3)}}) {
		t.Fatal("completion for a removed layer must not apply")
	}
	if invalidations != before {
		t.Error("dropped completion must not invalidate")
	}
	if e.Store().Len() != 0 {
		t.Error("dropped completion must not resurrect the layer")
	}
}

func TestCopyOfPendingImageReceivesDecode(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	l, _ := e.Layer(id)
	r := geom.Handles(l.Frame, geom.DefaultHandleSize).Rect(geom.HandleCopy)
	p := geom.P(r.X+r.W/2, r.Y+r.H/2)
	if out := e.PointerDown(p); out.Mode != gesture.Copying {
		t.Fatalf("mode = %v", out.Mode)
	}
	e.PointerUp(p)
	cloneID, ok := e.Selected()
	if !ok || cloneID == id {
		t.Fatalf("clone not selected: %q", cloneID)
	}
	clone, _ := e.Layer(cloneID)
	if clone.Image.State != domain.ImagePending || clone.Drawable() {
		t.Fatalf("clone = %+v", clone.Image)
	}

	if !e.ApplyCompletion(imagesource.Completion{
		LayerID: id,
		Result:  imagesource.Decoded{Image: image.NewNRGBA(image.Rect(0, 0, 30, 60)), Natural: image.Pt(30, 60)},
	}) {
		t.Fatal("completion not applied")
	}
	for _, lid := range []domain.LayerID{id, clone.ID} {
		got, _ := e.Layer(lid)
		if got.Image.State != domain.ImageReady || !got.Drawable() || got.Image.LoadID != "" {
			t.Errorf("%s: state = %v drawable = %v", lid, got.Image.State, got.Drawable())
		}
		if got.Frame.Size != (geom.Size{W: 10, H: 20}) {
			t.Errorf("%s: size = %+v", lid, got.Frame.Size)
		}
	}
}

func TestCopyOfPendingImageOutlivesOriginal(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	clone, ok := e.Store().Duplicate(id, geom.P(10, 10))
	if !ok {
		t.Fatal("duplicate failed")
	}
	e.Delete(id)
	if !e.ApplyCompletion(imagesource.Completion{LayerID: id, Err: errors.New("404")}) {
		t.Fatal("completion should reach the remaining copy")
	}
	got, _ := e.Layer(clone)
	if got.Image.State != domain.ImageFailed {
		t.Errorf("clone state = %v", got.Image.State)
	}
}

func TestNudgeAndResizeStep(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))

	e.Nudge(id, 1, 0)
	e.Nudge(id, 0, -1)
	l, _ := e.Layer(id)
	if l.Frame.Center != geom.P(122, 118) {
		t.Errorf("center = %v", l.Frame.Center)
	}

	e.ResizeStep(id, 1)
	l, _ = e.Layer(id)
	if !near(l.Frame.Size.W, 103.78) || !near(l.Frame.Size.H, 103.78) {
		t.Errorf("size = %+v", l.Frame.Size)
	}
	if l.Image.AutoSize {
		t.Error("resize step should turn off auto size")
	}
	e.ResizeStep(id, -1000)
	l, _ = e.Layer(id)
	if l.Frame.Size.W != 1 || l.Frame.Size.H != 1 {
		t.Errorf("shrink should clamp at min size, got %+v", l.Frame.Size)
	}

	txt := e.AddText("Hi")
	e.ResizeStep(txt, -1)
	tl, _ := e.Layer(txt)
	if !near(tl.Text.FontSize, 20-3.78) || !near(tl.Frame.Size.H, tl.Text.FontSize) {
		t.Errorf("text resize step: font %v h %v", tl.Text.FontSize, tl.Frame.Size.H)
	}
}

func TestSetImageSizeMM(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	e.SetImageSizeMM(id, 30, 0)
	l, _ := e.Layer(id)
	if !near(l.Frame.Size.W, 30*3.78/3) || l.Frame.Size.H != 100 {
		t.Errorf("size = %+v", l.Frame.Size)
	}
	txt := e.AddText("Hi")
	e.SetImageSizeMM(txt, 0, 10)
	tl, _ := e.Layer(txt)
	if !near(tl.Text.FontSize, 10*3.78/3) {
		t.Errorf("font size = %v", tl.Text.FontSize)
	}
}

func TestOrderingAndLayerList(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	img := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	txt := e.AddText("Front")

	ls := e.Layers()
	if len(ls) != 2 || ls[0].ID != txt || ls[0].Label != "Text: Front" || !ls[0].Selected {
		t.Fatalf("layers = %+v", ls)
	}
	if ls[1].Label != "Image "+string(img) {
		t.Errorf("image label = %q", ls[1].Label)
	}
	if !e.MoveUp(img) || e.MoveUp(img) {
		t.Error("MoveUp should apply once then hit the boundary")
	}
	if e.Layers()[0].ID != img {
		t.Error("image should be on top after MoveUp")
	}
	if !e.MoveDown(img) {
		t.Error("MoveDown should apply")
	}
}

func TestDeleteGestureShowsAlertOverlay(t *testing.T) {
	rec := &recorder{}
	e := New(DefaultConfig(), WithTracker(rec))
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	// default 100x100 box at (120,120); delete handle spans x 170..190, y 50..70
	out := e.PointerDown(geom.P(180, 60))
	if out.Mode != gesture.Deleting {
		t.Fatalf("mode = %v", out.Mode)
	}
	ov := e.Overlay()
	if !ov.Alert || !ov.Gesture || ov.Active != geom.HandleDelete || ov.Selected != id {
		t.Errorf("overlay = %+v", ov)
	}
	e.PointerUp(geom.P(180, 60))
	if e.Store().Len() != 0 {
		t.Fatal("delete should commit on release")
	}
	if _, ok := e.Selected(); ok {
		t.Error("selection should be cleared")
	}
	if got := rec.events[len(rec.events)-1]; got != "layer_deleted" {
		t.Errorf("last event = %q", got)
	}
	if e.Overlay().Gesture {
		t.Error("overlay should be idle after release")
	}
}

func TestDeleteCancelsRunningGesture(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	id := e.AddImage(context.Background(), imagesource.Ref("a.png"))
	e.PointerDown(geom.P(120, 120))
	if e.Mode() != gesture.Dragging {
		t.Fatalf("mode = %v", e.Mode())
	}
	e.Delete(id)
	if e.Mode() != gesture.Idle {
		t.Error("deleting the dragged layer should end the gesture")
	}
	e.PointerMove(geom.P(150, 150))
	e.PointerUp(geom.P(150, 150))
}

func TestExportImageSize(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	e.AddText("Hi")
	img := e.ExportImage()
	if b := img.Bounds(); b.Dx() != 794 || b.Dy() != 1123 {
		t.Fatalf("export bounds = %v, want 794x1123", b)
	}
	preview := e.Render(1)
	if b := preview.Bounds(); b.Dx() != 265 || b.Dy() != 375 {
		t.Fatalf("preview bounds = %v", b)
	}
}

func TestCanvasSizeLimit(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Scale = 10000
	if err := cfg.Validate(); !errors.Is(err, ErrCanvasTooLarge) {
		t.Fatalf("err = %v, want ErrCanvasTooLarge", err)
	}
	cfg = DefaultConfig()
	cfg.Scale = math.NaN()
	if err := cfg.Validate(); err == nil {
		t.Fatal("NaN scale accepted")
	}

	e := New(DefaultConfig())
	defer e.Close()
	before := e.Canvas()
	e.SetCanvas(geom.Size{W: 1e6, H: 1e6})
	if e.Canvas() != before {
		t.Fatalf("oversized canvas applied: %+v", e.Canvas())
	}
}

func TestSnapshotJSON(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Close()
	e.AddImage(context.Background(), imagesource.Ref("a.png"))
	txt := e.AddText("Hi")
	data, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Selected string `json:"selected"`
		Layers   []struct {
			Kind  string `json:"kind"`
			Color string `json:"color"`
		} `json:"layers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	if doc.Selected != string(txt) || len(doc.Layers) != 2 || doc.Layers[1].Color != "#000000" {
		t.Errorf("snapshot = %s", data)
	}
}

func TestWaitPendingHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	e := New(DefaultConfig(), WithDecoder(blockingDecoder{block}))
	defer e.Close()
	e.AddImage(context.Background(), imagesource.Ref("slow.png"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.WaitPending(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

type blockingDecoder struct{ release chan struct{} }

func (d blockingDecoder) Decode(ctx context.Context, _ imagesource.Source) (imagesource.Decoded, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return imagesource.Decoded{}, errors.New("released")
}
