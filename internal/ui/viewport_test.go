/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"testing"

	"garmentcanvas/internal/geom"
)

func TestViewportFitsAndCenters(t *testing.T) {
	v := Viewport{Canvas: geom.Size{W: 100, H: 200}, Widget: geom.Size{W: 400, H: 400}}
	if v.Zoom() != 2 {
		t.Fatalf("zoom = %v", v.Zoom())
	}
	if v.Origin() != geom.P(100, 0) {
		t.Fatalf("origin = %v", v.Origin())
	}
	p := geom.P(37, 150)
	if got := v.ToCanvas(v.ToWidget(p)); !got.Near(p, 1e-9) {
		t.Fatalf("round trip = %v", got)
	}
	if got := v.ToCanvas(geom.P(100, 0)); got != (geom.Pt{}) {
		t.Fatalf("origin maps to %v", got)
	}
}

func TestViewportDegenerate(t *testing.T) {
	v := Viewport{Canvas: geom.Size{W: 100, H: 100}}
	if v.Zoom() != 1 {
		t.Fatalf("zoom = %v", v.Zoom())
	}
}
