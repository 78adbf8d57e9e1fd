/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"math"

	"garmentcanvas/internal/geom"
)

// Viewport fits the design canvas into a widget, keeping its aspect ratio
// and centering it. Widget coordinates are in the toolkit's units.
type Viewport struct {
	Canvas geom.Size
	Widget geom.Size
}

// Zoom is widget units per canvas unit.
func (v Viewport) Zoom() float64 {
	if v.Canvas.W <= 0 || v.Canvas.H <= 0 || v.Widget.W <= 0 || v.Widget.H <= 0 {
		return 1
	}
	return math.Min(v.Widget.W/v.Canvas.W, v.Widget.H/v.Canvas.H)
}

// Origin is the widget position of the canvas origin.
func (v Viewport) Origin() geom.Pt {
	z := v.Zoom()
	return geom.P((v.Widget.W-v.Canvas.W*z)/2, (v.Widget.H-v.Canvas.H*z)/2)
}

// ToCanvas maps a widget position to canvas units.
func (v Viewport) ToCanvas(p geom.Pt) geom.Pt {
	return p.Sub(v.Origin()).Mul(1 / v.Zoom())
}

// ToWidget maps canvas units to a widget position.
func (v Viewport) ToWidget(p geom.Pt) geom.Pt {
	return p.Mul(v.Zoom()).Add(v.Origin())
}
