/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// Incremental geometry used by gestures. Every function takes the frame as it
// is now plus the reference captured at gesture start and returns a new,
// clamped frame; none of them mutate.

// DragOffset is the pointer-to-center offset captured when a drag starts.
func DragOffset(p Pt, f Frame) Pt { return p.Sub(f.Center) }

// Drag moves the center so that it stays at the captured offset from p.
func Drag(f Frame, p, offset Pt) Frame {
	out := f
	out.Center = p.Sub(offset)
	if !out.Center.Finite() {
		return f
	}
	return out
}

// EdgeOffset is the local pointer offset from the bottom-right corner of the
// box. Resize variants use only the component along their axis.
func EdgeOffset(p Pt, f Frame) Pt {
	l := ToLocal(p, f)
	return Pt{
		X: l.X - f.Center.X - f.Size.W/2,
		Y: l.Y - f.Center.Y - f.Size.H/2,
	}
}

// UniformScale returns the factor a corner drag to p applies to both sides:
// (w' + h') / (w + h) where w', h' are the doubled local deltas.
func UniformScale(f Frame, p, offset Pt) float64 {
	old := f.Size.W + f.Size.H
	if old == 0 {
		return 1
	}
	l := ToLocal(p, f)
	nw := 2 * (l.X - f.Center.X - offset.X)
	nh := 2 * (l.Y - f.Center.Y - offset.Y)
	return (nw + nh) / old
}

// ScaleUniform scales both sides by k. The factor is raised so that the
// smaller side does not drop below minSize.
func ScaleUniform(f Frame, k, minSize float64) Frame {
	if !finite(k) {
		return f
	}
	if m := math.Min(f.Size.W, f.Size.H); m > 0 && m*k < minSize {
		k = minSize / m
	}
	out := f
	out.Size = Size{W: f.Size.W * k, H: f.Size.H * k}
	return Clamp(out, f, minSize)
}

// ResizeUniform applies a corner-handle drag.
func ResizeUniform(f Frame, p, offset Pt, minSize float64) Frame {
	return ScaleUniform(f, UniformScale(f, p, offset), minSize)
}

// ResizeWidth sets the width from the doubled local x delta past the edge.
func ResizeWidth(f Frame, p Pt, offsetX, minSize float64) Frame {
	l := ToLocal(p, f)
	out := f
	out.Size.W = 2 * (l.X - f.Center.X - offsetX)
	return Clamp(out, f, minSize)
}

// ResizeHeight sets the height from the doubled local y delta past the edge.
func ResizeHeight(f Frame, p Pt, offsetY, minSize float64) Frame {
	l := ToLocal(p, f)
	out := f
	out.Size.H = 2 * (l.Y - f.Center.Y - offsetY)
	return Clamp(out, f, minSize)
}

// Bearing is the angle of the vector from p to c.
func Bearing(p, c Pt) float64 { return math.Atan2(-(p.Y - c.Y), -(p.X - c.X)) }

// RotateTo turns the frame by the bearing change since the grab point.
func RotateTo(f Frame, p Pt, startRotation, startBearing float64) Frame {
	out := f
	out.Rotation = startRotation + Bearing(p, f.Center) - startBearing
	return Clamp(out, f, 0)
}
