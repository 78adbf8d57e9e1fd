/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"math"
	"testing"
	"unicode/utf8"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/layers"
)

// halfEm measures every rune as half the font size wide.
type halfEm struct{}

func (halfEm) MeasureText(t domain.Text) geom.Size {
	return geom.Size{W: float64(utf8.RuneCountInString(t.Content)) * t.FontSize / 2, H: t.FontSize}
}

func setup(t *testing.T) (*layers.Store, *Machine, domain.LayerID) {
	t.Helper()
	s := layers.New()
	l := domain.NewImageLayer("mem:box", geom.P(100, 100))
	l.Frame.Size = geom.Size{W: 40, H: 20}
	id := s.Add(l)
	s.Select(id)
	return s, New(s, DefaultConfig(), halfEm{}), id
}

func frameOf(t *testing.T, s *layers.Store, id domain.LayerID) geom.Frame {
	t.Helper()
	l, ok := s.Get(id)
	if !ok {
		t.Fatalf("layer %s missing", id)
	}
	return l.Frame
}

func TestDragMovesByExactDelta(t *testing.T) {
	s, m, id := setup(t)
	if out := m.PointerDown(geom.P(105, 102)); out.Mode != Dragging {
		t.Fatalf("mode = %v", out.Mode)
	}
	m.PointerMove(geom.P(115, 122))
	m.PointerMove(geom.P(125, 142))
	if c := frameOf(t, s, id).Center; c != geom.P(120, 140) {
		t.Fatalf("center = %+v", c)
	}
	if out := m.PointerUp(geom.P(125, 142)); out.Mode != Idle || m.Session().Active() {
		t.Fatalf("session must close on release")
	}
	m.PointerMove(geom.P(0, 0))
	if c := frameOf(t, s, id).Center; c != geom.P(120, 140) {
		t.Fatalf("move after release changed the layer: %+v", c)
	}
}

func TestBodyOfOtherLayerSelectsAndStaysIdle(t *testing.T) {
	s, m, _ := setup(t)
	other := domain.NewImageLayer("mem:other", geom.P(300, 300))
	oid := s.Add(other)
	out := m.PointerDown(geom.P(300, 300))
	if out.Mode != Idle || !out.Changed {
		t.Fatalf("outcome = %+v", out)
	}
	if id, _ := s.SelectedID(); id != oid {
		t.Fatalf("selection = %s, want %s", id, oid)
	}
	m.PointerMove(geom.P(350, 350))
	if c := frameOf(t, s, oid).Center; c != geom.P(300, 300) {
		t.Fatalf("selection press must not drag: %+v", c)
	}
}

func TestMissKeepsSelection(t *testing.T) {
	s, m, id := setup(t)
	if out := m.PointerDown(geom.P(500, 500)); out.Target.Hit() || out.Changed {
		t.Fatalf("outcome = %+v", out)
	}
	if sel, _ := s.SelectedID(); sel != id {
		t.Fatalf("selection changed on miss")
	}
}

func TestDeleteCommitsOnRelease(t *testing.T) {
	s, m, id := setup(t)
	if out := m.PointerDown(geom.P(130, 80)); out.Mode != Deleting {
		t.Fatalf("mode = %v", out.Mode)
	}
	m.PointerMove(geom.P(10, 10))
	if _, ok := s.Get(id); !ok {
		t.Fatalf("delete must wait for release")
	}
	out := m.PointerUp(geom.P(10, 10))
	if out.Deleted != id || !out.Changed {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := s.Get(id); ok {
		t.Fatalf("layer still present")
	}
	if _, ok := s.SelectedID(); ok {
		t.Fatalf("delete must clear the selection")
	}
}

func TestLeaveCommitsDelete(t *testing.T) {
	s, m, id := setup(t)
	m.PointerDown(geom.P(130, 80))
	if out := m.PointerLeave(); out.Deleted != id {
		t.Fatalf("leave should commit the delete: %+v", out)
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestCopyDuplicatesOnTop(t *testing.T) {
	s, m, id := setup(t)
	if out := m.PointerDown(geom.P(70, 120)); out.Mode != Copying {
		t.Fatalf("mode = %v", out.Mode)
	}
	out := m.PointerUp(geom.P(70, 120))
	if out.Copied == "" || out.Copied == id {
		t.Fatalf("outcome = %+v", out)
	}
	if s.Len() != 2 || s.Index(out.Copied) != 1 {
		t.Fatalf("clone must be on top")
	}
	if sel, _ := s.SelectedID(); sel != out.Copied {
		t.Fatalf("clone must be selected")
	}
	if c := frameOf(t, s, out.Copied).Center; c != geom.P(110, 110) {
		t.Fatalf("clone center = %+v", c)
	}
}

func TestUniformResizeKeepsAspect(t *testing.T) {
	s, m, id := setup(t)
	if out := m.PointerDown(geom.P(130, 120)); out.Mode != Resizing {
		t.Fatalf("mode = %v", out.Mode)
	}
	m.PointerMove(geom.P(140, 125))
	f := frameOf(t, s, id)
	if math.Abs(f.Size.W-60) > 1e-9 || math.Abs(f.Size.H-30) > 1e-9 {
		t.Fatalf("size = %+v, want 60x30", f.Size)
	}
	l, _ := s.Get(id)
	if l.Image.AutoSize {
		t.Fatalf("a manual resize must stop auto sizing")
	}
}

func TestInvertedResizeIsClamped(t *testing.T) {
	s, m, id := setup(t)
	m.PointerDown(geom.P(130, 120))
	m.PointerMove(geom.P(0, 0))
	f := frameOf(t, s, id)
	if f.Size.W < 1 || f.Size.H < 1 {
		t.Fatalf("size below minimum: %+v", f.Size)
	}
}

func TestWidthAndHeightHandles(t *testing.T) {
	s, m, id := setup(t)
	m.PointerDown(geom.P(130, 100))
	if m.Mode() != ResizingWidth {
		t.Fatalf("mode = %v", m.Mode())
	}
	m.PointerMove(geom.P(140, 100))
	if f := frameOf(t, s, id); f.Size != (geom.Size{W: 60, H: 20}) {
		t.Fatalf("size = %+v", f.Size)
	}
	m.PointerUp(geom.P(140, 100))

	m.PointerDown(geom.P(100, 125))
	if m.Mode() != ResizingHeight {
		t.Fatalf("mode = %v", m.Mode())
	}
	m.PointerMove(geom.P(100, 135))
	if f := frameOf(t, s, id); f.Size != (geom.Size{W: 60, H: 40}) {
		t.Fatalf("size = %+v", f.Size)
	}
}

func TestRotateFollowsBearing(t *testing.T) {
	s, m, id := setup(t)
	p0, p1 := geom.P(70, 80), geom.P(130, 80)
	m.PointerDown(p0)
	if m.Mode() != Rotating {
		t.Fatalf("mode = %v", m.Mode())
	}
	m.PointerMove(p1)
	c := geom.P(100, 100)
	want := geom.NormalizeAngle(geom.Bearing(p1, c) - geom.Bearing(p0, c))
	if got := frameOf(t, s, id).Rotation; math.Abs(got-want) > 1e-9 {
		t.Fatalf("rotation = %v, want %v", got, want)
	}
}

func TestTextResizeScalesFontSize(t *testing.T) {
	s := layers.New()
	l := domain.NewTextLayer("Hi", geom.P(100, 100))
	l.SyncTextSize(halfEm{})
	id := s.Add(l)
	s.Select(id)
	m := New(s, DefaultConfig(), halfEm{})

	if out := m.PointerDown(geom.P(115, 115)); out.Mode != Resizing {
		t.Fatalf("mode = %v", out.Mode)
	}
	m.PointerMove(geom.P(125, 125))
	got, _ := s.Get(id)
	if math.Abs(got.Text.FontSize-40) > 1e-9 {
		t.Fatalf("fontSize = %v, want 40", got.Text.FontSize)
	}
	if got.Frame.Size != (geom.Size{W: 40, H: 40}) {
		t.Fatalf("size = %+v", got.Frame.Size)
	}
	m.PointerUp(geom.P(125, 125))

	// width-only handle is inert on text
	before := got
	m.PointerDown(geom.P(130, 100))
	m.PointerMove(geom.P(200, 100))
	after, _ := s.Get(id)
	if after.Frame != before.Frame || after.Text != before.Text {
		t.Fatalf("width resize must not change text: %+v", after)
	}
}

func TestLayerRemovedMidGesture(t *testing.T) {
	s, m, id := setup(t)
	m.PointerDown(geom.P(105, 105))
	s.Remove(id)
	if out := m.PointerMove(geom.P(200, 200)); out.Changed {
		t.Fatalf("move on a removed layer must be a no-op")
	}
	if m.Session().Active() {
		t.Fatalf("session should be dropped")
	}
	if out := m.PointerUp(geom.P(200, 200)); out.Changed {
		t.Fatalf("release after removal should do nothing: %+v", out)
	}
}

func TestApplyIsPure(t *testing.T) {
	s, _, id := setup(t)
	l, _ := s.Get(id)
	sess := Session{Mode: Dragging, LayerID: id}
	moved := sess.Apply(l, geom.P(10, 10), DefaultConfig(), nil)
	if moved.Frame.Center != geom.P(10, 10) {
		t.Fatalf("center = %+v", moved.Frame.Center)
	}
	if frameOf(t, s, id).Center != geom.P(100, 100) {
		t.Fatalf("Apply must not touch the store")
	}
	if nan := sess.Apply(l, geom.P(math.NaN(), 1), DefaultConfig(), nil); nan.Frame != l.Frame {
		t.Fatalf("non-finite pointer must be ignored")
	}
}

func TestActiveHandle(t *testing.T) {
	if Deleting.ActiveHandle() != geom.HandleDelete || Dragging.ActiveHandle() != geom.HandleNone {
		t.Fatalf("unexpected active handles")
	}
}
