/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math"
	"strings"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
)

// editText mutates a text layer and re-derives its size. Image layers and
// unknown ids are left alone.
func (e *Editor) editText(id domain.LayerID, mutate func(t *domain.Text) bool) bool {
	applied := false
	e.store.Update(id, func(l *domain.Layer) {
		if l.Kind != domain.KindText || !mutate(&l.Text) {
			return
		}
		l.SyncTextSize(e.measure)
		applied = true
	})
	if applied {
		e.changed()
	}
	return applied
}

// SetText replaces the content of a text layer. Empty text is allowed.
func (e *Editor) SetText(id domain.LayerID, s string) bool {
	return e.editText(id, func(t *domain.Text) bool {
		t.Content = s
		return true
	})
}

// SetColor sets the fill color of a text layer.
func (e *Editor) SetColor(id domain.LayerID, c domain.Color) bool {
	return e.editText(id, func(t *domain.Text) bool {
		t.Color = c
		return true
	})
}

// SetFontFamily sets the font family of a text layer.
func (e *Editor) SetFontFamily(id domain.LayerID, family string) bool {
	family = strings.TrimSpace(family)
	if family == "" {
		return false
	}
	return e.editText(id, func(t *domain.Text) bool {
		t.FontFamily = family
		return true
	})
}

// SetFontSize sets the font size of a text layer. Sizes below the minimum
// layer size are clamped.
func (e *Editor) SetFontSize(id domain.LayerID, size float64) bool {
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return false
	}
	size = math.Max(size, e.minSize())
	return e.editText(id, func(t *domain.Text) bool {
		t.FontSize = size
		return true
	})
}

// SetTextStyle sets normal, bold or italic.
func (e *Editor) SetTextStyle(id domain.LayerID, st domain.TextStyle) bool {
	return e.editText(id, func(t *domain.Text) bool {
		t.Style = st
		return true
	})
}

func (e *Editor) minSize() float64 { return math.Max(e.machine.Config().MinSize, 1) }

// SetImageSize sets the box of an image layer in canvas units. A zero or
// negative dimension keeps its current value.
func (e *Editor) SetImageSize(id domain.LayerID, w, h float64) bool {
	applied := false
	e.store.Update(id, func(l *domain.Layer) {
		if l.Kind != domain.KindImage {
			return
		}
		next := l.Frame
		if w > 0 {
			next.Size.W = w
		}
		if h > 0 {
			next.Size.H = h
		}
		next = geom.Clamp(next, l.Frame, e.minSize())
		if next == l.Frame {
			return
		}
		l.Frame = next
		l.Image.AutoSize = false
		applied = true
	})
	if applied {
		e.changed()
	}
	return applied
}

// SetImageSizeMM is the millimetre entry of the property panel. For image
// layers wMM and hMM map to the box (zero keeps a dimension); for text
// layers the first non-zero value becomes the font size. Millimetres refer
// to the exported print, hence the division by the canvas scale.
func (e *Editor) SetImageSizeMM(id domain.LayerID, wMM, hMM float64) bool {
	toUnits := func(mm float64) float64 { return mm * PixelsPerMM / e.cfg.Scale }
	l, ok := e.store.Get(id)
	if !ok {
		return false
	}
	if l.Kind == domain.KindText {
		mm := wMM
		if mm <= 0 {
			mm = hMM
		}
		if mm <= 0 {
			return false
		}
		return e.SetFontSize(id, toUnits(mm))
	}
	var w, h float64
	if wMM > 0 {
		w = toUnits(wMM)
	}
	if hMM > 0 {
		h = toUnits(hMM)
	}
	return e.SetImageSize(id, w, h)
}

// Nudge moves a layer by (dx, dy) nudge steps.
func (e *Editor) Nudge(id domain.LayerID, dx, dy float64) bool {
	d := geom.P(dx, dy).Mul(e.cfg.NudgeStep)
	if !d.Finite() || (d.X == 0 && d.Y == 0) {
		return false
	}
	ok := e.store.Update(id, func(l *domain.Layer) {
		l.Frame.Center = l.Frame.Center.Add(d)
	})
	if ok {
		e.changed()
	}
	return ok
}

// ResizeStep grows (steps > 0) or shrinks a layer by resize steps. Image
// layers change both dimensions by the step; text layers change the font
// size by it.
func (e *Editor) ResizeStep(id domain.LayerID, steps float64) bool {
	d := steps * e.cfg.ResizeStep
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return false
	}
	l, ok := e.store.Get(id)
	if !ok {
		return false
	}
	if l.Kind == domain.KindText {
		return e.SetFontSize(id, l.Text.FontSize+d)
	}
	return e.SetImageSize(id,
		math.Max(l.Frame.Size.W+d, e.minSize()),
		math.Max(l.Frame.Size.H+d, e.minSize()))
}
