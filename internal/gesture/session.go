/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture implements the pointer interaction lifecycle of the canvas:
// a pointer-down on the selected layer opens a Session, moves apply it, and
// release or leave closes it with any terminal action (delete, copy).
package gesture

import (
	"math"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/hittest"
)

// Mode is the interaction mode of an open session.
type Mode uint8

const (
	Idle Mode = iota
	Dragging
	Resizing
	ResizingWidth
	ResizingHeight
	Rotating
	Deleting
	Copying
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case ResizingWidth:
		return "resizingWidth"
	case ResizingHeight:
		return "resizingHeight"
	case Rotating:
		return "rotating"
	case Deleting:
		return "deleting"
	case Copying:
		return "copying"
	default:
		return "idle"
	}
}

// ActiveHandle is the handle that stays visible while the mode is active.
func (m Mode) ActiveHandle() geom.Handle {
	switch m {
	case Resizing:
		return geom.HandleResize
	case ResizingWidth:
		return geom.HandleResizeWidth
	case ResizingHeight:
		return geom.HandleResizeHeight
	case Rotating:
		return geom.HandleRotate
	case Deleting:
		return geom.HandleDelete
	case Copying:
		return geom.HandleCopy
	}
	return geom.HandleNone
}

func modeFor(k hittest.Kind) Mode {
	switch k {
	case hittest.Body:
		return Dragging
	case hittest.Resize:
		return Resizing
	case hittest.ResizeWidth:
		return ResizingWidth
	case hittest.ResizeHeight:
		return ResizingHeight
	case hittest.Rotate:
		return Rotating
	case hittest.Delete:
		return Deleting
	case hittest.Copy:
		return Copying
	}
	return Idle
}

// Session is the state captured at gesture start. The zero value is Idle.
type Session struct {
	Mode    Mode
	LayerID domain.LayerID
	// Offset is pointer-minus-center for drags and the local offset from the
	// bottom-right corner for resize variants.
	Offset        geom.Pt
	StartRotation float64
	StartBearing  float64
}

// Active reports whether the session is open.
func (s Session) Active() bool { return s.Mode != Idle }

// Begin opens a session for target t on layer l at canvas point p.
func Begin(l domain.Layer, t hittest.Target, p geom.Pt) Session {
	s := Session{Mode: modeFor(t.Kind), LayerID: l.ID}
	switch s.Mode {
	case Dragging:
		s.Offset = geom.DragOffset(p, l.Frame)
	case Resizing, ResizingWidth, ResizingHeight:
		s.Offset = geom.EdgeOffset(p, l.Frame)
	case Rotating:
		s.StartRotation = l.Frame.Rotation
		s.StartBearing = geom.Bearing(p, l.Frame.Center)
	}
	return s
}

// Apply returns l updated for a pointer at p. Deleting, Copying and Idle
// leave the layer untouched; their effect happens at session end.
func (s Session) Apply(l domain.Layer, p geom.Pt, cfg Config, m domain.TextMeasurer) domain.Layer {
	if !p.Finite() {
		return l
	}
	switch s.Mode {
	case Dragging:
		l.Frame = geom.Drag(l.Frame, p, s.Offset)
	case Resizing:
		if l.Kind == domain.KindText {
			return scaleText(l, geom.UniformScale(l.Frame, p, s.Offset), cfg, m)
		}
		l.Frame = geom.ResizeUniform(l.Frame, p, s.Offset, cfg.MinSize)
		l.Image.AutoSize = false
	case ResizingWidth:
		if l.Kind == domain.KindText {
			return l
		}
		l.Frame = geom.ResizeWidth(l.Frame, p, s.Offset.X, cfg.MinSize)
		l.Image.AutoSize = false
	case ResizingHeight:
		if l.Kind == domain.KindText {
			return l
		}
		l.Frame = geom.ResizeHeight(l.Frame, p, s.Offset.Y, cfg.MinSize)
		l.Image.AutoSize = false
	case Rotating:
		l.Frame = geom.RotateTo(l.Frame, p, s.StartRotation, s.StartBearing)
	}
	return l
}

// scaleText applies a uniform resize to a text layer through its font size.
// Without a measurer the box is scaled directly.
func scaleText(l domain.Layer, k float64, cfg Config, m domain.TextMeasurer) domain.Layer {
	if math.IsNaN(k) || math.IsInf(k, 0) || l.Text.FontSize <= 0 {
		return l
	}
	fs := math.Max(l.Text.FontSize*k, math.Max(cfg.MinSize, 1))
	if m == nil {
		l.Frame = geom.ScaleUniform(l.Frame, fs/l.Text.FontSize, cfg.MinSize)
		l.Text.FontSize = fs
		return l
	}
	l.Text.FontSize = fs
	l.SyncTextSize(m)
	return l
}
