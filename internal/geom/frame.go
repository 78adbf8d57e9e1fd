/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// Frame is the placement of a layer on the canvas. Center is the pivot for
// rotation and the anchor for all handle geometry.
type Frame struct {
	Center   Pt
	Size     Size
	Rotation float64 // radians
}

// Transform maps layer-local points to canvas points:
// translate(center) · rotate(θ) · translate(-center).
func (f Frame) Transform() Affine2D {
	return Translate(f.Center.X, f.Center.Y).
		Mul(Rotate(f.Rotation)).
		Mul(Translate(-f.Center.X, -f.Center.Y))
}

// Bounds is the bounding box in the local frame, centered on Center.
func (f Frame) Bounds() Rect {
	return Rect{
		X: f.Center.X - f.Size.W/2,
		Y: f.Center.Y - f.Size.H/2,
		W: f.Size.W,
		H: f.Size.H,
	}
}

// ToLocal maps a canvas point into the layer-local frame by rotating it about
// the center by -Rotation. Every hit test and drag computation goes through it.
func ToLocal(p Pt, f Frame) Pt {
	if f.Rotation == 0 {
		return p
	}
	s, c := math.Sincos(-f.Rotation)
	dx, dy := p.X-f.Center.X, p.Y-f.Center.Y
	return Pt{
		X: c*dx - s*dy + f.Center.X,
		Y: s*dx + c*dy + f.Center.Y,
	}
}

// ToCanvas is the inverse of ToLocal.
func ToCanvas(p Pt, f Frame) Pt {
	if f.Rotation == 0 {
		return p
	}
	s, c := math.Sincos(f.Rotation)
	dx, dy := p.X-f.Center.X, p.Y-f.Center.Y
	return Pt{
		X: c*dx - s*dy + f.Center.X,
		Y: s*dx + c*dy + f.Center.Y,
	}
}

// Contains reports whether the canvas point p lies inside the rotated box.
func (f Frame) Contains(p Pt) bool { return f.Bounds().Contains(ToLocal(p, f)) }

// Corners returns the four box corners in canvas space, clockwise from top-left.
func (f Frame) Corners() [4]Pt {
	b := f.Bounds()
	m := f.Transform()
	return [4]Pt{
		m.Apply(Pt{b.X, b.Y}),
		m.Apply(Pt{b.X + b.W, b.Y}),
		m.Apply(Pt{b.X + b.W, b.Y + b.H}),
		m.Apply(Pt{b.X, b.Y + b.H}),
	}
}

// Clamp repairs a frame produced by drag math. Sizes below minSize are raised
// to minSize, and any non-finite component falls back to prev.
func Clamp(next, prev Frame, minSize float64) Frame {
	out := next
	if !out.Center.Finite() {
		out.Center = prev.Center
	}
	out.Size.W = clampDim(next.Size.W, prev.Size.W, minSize)
	out.Size.H = clampDim(next.Size.H, prev.Size.H, minSize)
	if !finite(out.Rotation) {
		out.Rotation = prev.Rotation
	}
	out.Rotation = NormalizeAngle(out.Rotation)
	return out
}

func clampDim(v, prev, minSize float64) float64 {
	if !finite(v) {
		v = prev
	}
	if !finite(v) || v < minSize {
		return minSize
	}
	return v
}
