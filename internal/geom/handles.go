/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

// Handle identifies an interactive hotspot attached to the selected layer.
type Handle uint8

const (
	HandleNone Handle = iota
	HandleResize
	HandleResizeWidth
	HandleResizeHeight
	HandleDelete
	HandleCopy
	HandleRotate
)

// DefaultHandleSize is the side length of every handle square.
const DefaultHandleSize = 20

// HitOrder is the fixed priority in which handles are tested.
var HitOrder = [...]Handle{
	HandleResize,
	HandleResizeWidth,
	HandleResizeHeight,
	HandleDelete,
	HandleCopy,
	HandleRotate,
}

func (h Handle) String() string {
	switch h {
	case HandleResize:
		return "resize"
	case HandleResizeWidth:
		return "resizeWidth"
	case HandleResizeHeight:
		return "resizeHeight"
	case HandleDelete:
		return "delete"
	case HandleCopy:
		return "copy"
	case HandleRotate:
		return "rotate"
	default:
		return "none"
	}
}

// HandleRects is the handle layout of a frame, in the layer-local frame.
type HandleRects struct {
	Resize       Rect
	ResizeWidth  Rect
	ResizeHeight Rect
	Delete       Rect
	Copy         Rect
	Rotate       Rect
}

// Handles lays out the handle squares of side s around f's bounding box.
func Handles(f Frame, s float64) HandleRects {
	cx, cy := f.Center.X, f.Center.Y
	hw, hh := f.Size.W/2, f.Size.H/2
	return HandleRects{
		Resize:       R(cx+hw, cy+hh, s, s),
		ResizeWidth:  R(cx+hw, cy-s/2, s, s),
		ResizeHeight: R(cx-s/2, cy+hh, s, s),
		Delete:       R(cx+hw, cy-hh-s, s, s),
		Copy:         R(cx-hw-s, cy+hh, s, s),
		Rotate:       R(cx-hw-s, cy-hh-s, s, s),
	}
}

// Rect returns the rectangle of handle h (zero Rect for HandleNone).
func (hr HandleRects) Rect(h Handle) Rect {
	switch h {
	case HandleResize:
		return hr.Resize
	case HandleResizeWidth:
		return hr.ResizeWidth
	case HandleResizeHeight:
		return hr.ResizeHeight
	case HandleDelete:
		return hr.Delete
	case HandleCopy:
		return hr.Copy
	case HandleRotate:
		return hr.Rotate
	}
	return Rect{}
}

// HandleAt returns the first handle in HitOrder containing the local point.
func (hr HandleRects) HandleAt(local Pt) Handle {
	for _, h := range HitOrder {
		if hr.Rect(h).Contains(local) {
			return h
		}
	}
	return HandleNone
}

// Extent is the local-space rect covering the box and every handle.
func (hr HandleRects) Extent(f Frame) Rect {
	r := f.Bounds()
	for _, h := range HitOrder {
		r = r.Union(hr.Rect(h))
	}
	return r
}
