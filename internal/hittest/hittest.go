/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package hittest resolves a pointer position against the layer stack into
// the interaction target it addresses.
package hittest

import (
	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/layers"
)

// Kind is what the pointer landed on.
type Kind uint8

const (
	None Kind = iota
	Body
	Resize
	ResizeWidth
	ResizeHeight
	Delete
	Copy
	Rotate
)

func (k Kind) String() string {
	switch k {
	case Body:
		return "body"
	case Resize:
		return "resize"
	case ResizeWidth:
		return "resizeWidth"
	case ResizeHeight:
		return "resizeHeight"
	case Delete:
		return "delete"
	case Copy:
		return "copy"
	case Rotate:
		return "rotate"
	default:
		return "none"
	}
}

// Handle maps the target kind to the geometry handle it denotes.
func (k Kind) Handle() geom.Handle {
	switch k {
	case Resize:
		return geom.HandleResize
	case ResizeWidth:
		return geom.HandleResizeWidth
	case ResizeHeight:
		return geom.HandleResizeHeight
	case Delete:
		return geom.HandleDelete
	case Copy:
		return geom.HandleCopy
	case Rotate:
		return geom.HandleRotate
	}
	return geom.HandleNone
}

func kindOf(h geom.Handle) Kind {
	switch h {
	case geom.HandleResize:
		return Resize
	case geom.HandleResizeWidth:
		return ResizeWidth
	case geom.HandleResizeHeight:
		return ResizeHeight
	case geom.HandleDelete:
		return Delete
	case geom.HandleCopy:
		return Copy
	case geom.HandleRotate:
		return Rotate
	}
	return None
}

// Target is the resolved interaction target. Local is the pointer in the
// local frame of the hit layer.
type Target struct {
	Kind    Kind
	LayerID domain.LayerID
	Local   geom.Pt
}

// Hit reports whether the pointer addressed any layer.
func (t Target) Hit() bool { return t.Kind != None }

// OnSelected reports whether the target belongs to the selected layer.
func (t Target) OnSelected(s *layers.Store) bool {
	id, ok := s.SelectedID()
	return ok && t.Hit() && t.LayerID == id
}

// Resolve finds the target under p. The selected layer is tested first,
// body before its handles in fixed order; then every layer top-to-bottom by
// body only. Bounds are inclusive on all edges.
func Resolve(p geom.Pt, s *layers.Store, handleSize float64) Target {
	if handleSize <= 0 {
		handleSize = geom.DefaultHandleSize
	}
	if sel, ok := s.Selected(); ok {
		if t, ok := onSelected(p, sel, handleSize); ok {
			return t
		}
	}
	for _, l := range s.OrderedTopToBottom() {
		local := geom.ToLocal(p, l.Frame)
		if l.Frame.Bounds().Contains(local) {
			return Target{Kind: Body, LayerID: l.ID, Local: local}
		}
	}
	return Target{}
}

func onSelected(p geom.Pt, l domain.Layer, handleSize float64) (Target, bool) {
	local := geom.ToLocal(p, l.Frame)
	if l.Frame.Bounds().Contains(local) {
		return Target{Kind: Body, LayerID: l.ID, Local: local}, true
	}
	if h := geom.Handles(l.Frame, handleSize).HandleAt(local); h != geom.HandleNone {
		return Target{Kind: kindOf(h), LayerID: l.ID, Local: local}, true
	}
	return Target{}, false
}
