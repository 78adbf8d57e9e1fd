/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"

	"garmentcanvas/internal/geom"
)

// DefaultScale is the canvas scale factor: one canvas unit is three output
// pixels, so the on-screen canvas is a third of the print size.
const DefaultScale = 3

// Preset is a paper format at 96 dpi.
type Preset struct {
	Name     string  `json:"name"`
	Width    int     `json:"width_px"`
	Height   int     `json:"height_px"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
}

var (
	A4 = Preset{Name: "A4", Width: 794, Height: 1123, WidthMM: 210, HeightMM: 297}
	A3 = Preset{Name: "A3", Width: 1123, Height: 1587, WidthMM: 297, HeightMM: 420}
)

// Presets lists the supported paper formats.
func Presets() []Preset { return []Preset{A4, A3} }

// PresetByName looks a preset up case-insensitively.
func PresetByName(name string) (Preset, error) {
	for _, p := range Presets() {
		if strings.EqualFold(strings.TrimSpace(name), p.Name) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown paper format %q", name)
}

// Canvas is the design surface in canvas units for scale.
func (p Preset) Canvas(scale float64) geom.Size {
	if scale <= 0 {
		scale = DefaultScale
	}
	return geom.Size{W: float64(p.Width) / scale, H: float64(p.Height) / scale}
}
