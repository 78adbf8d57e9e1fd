/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"testing"

	"garmentcanvas/internal/geom"
)

type fixedMeasurer struct{ perRune float64 }

func (m fixedMeasurer) MeasureText(t Text) geom.Size {
	return geom.Size{W: float64(len([]rune(t.Content))) * m.perRune, H: t.FontSize}
}

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"#000000":   Black,
		"#fff":      White,
		"#FF000080": {255, 0, 0, 128},
		" red ":     Red,
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil {
			t.Fatalf("ParseColor(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseColor(%q) = %+v, want %+v", in, got, want)
		}
	}
	if _, err := ParseColor("#12345"); err == nil {
		t.Fatalf("expected error for malformed color")
	}
	if got := (Color{255, 0, 0, 128}).Hex(); got != "#ff000080" {
		t.Fatalf("Hex = %s", got)
	}
}

func TestParseTextStyle(t *testing.T) {
	if s, err := ParseTextStyle("Bold"); err != nil || s != StyleBold {
		t.Fatalf("ParseTextStyle(Bold) = %v, %v", s, err)
	}
	if _, err := ParseTextStyle("oblique"); err == nil {
		t.Fatalf("expected error for unknown style")
	}
}

func TestNewLayersDefaults(t *testing.T) {
	img := NewImageLayer("shirt.png", DefaultPosition)
	if img.Kind != KindImage || img.Image.State != ImagePending || !img.Image.AutoSize {
		t.Fatalf("unexpected image layer: %+v", img)
	}
	if img.Drawable() {
		t.Fatalf("pending image must not be drawable")
	}
	txt := NewTextLayer(DefaultText, DefaultPosition)
	if txt.Text.FontSize != 20 || txt.Text.FontFamily != "Arial" || txt.Text.Color != Black {
		t.Fatalf("unexpected text defaults: %+v", txt.Text)
	}
	if !txt.Drawable() {
		t.Fatalf("text layers are always drawable")
	}
}

func TestSyncTextSize(t *testing.T) {
	l := NewTextLayer("Hi", geom.P(0, 0))
	if !l.SyncTextSize(fixedMeasurer{perRune: 7}) {
		t.Fatalf("first sync should change the size")
	}
	if l.Frame.Size != (geom.Size{W: 14, H: 20}) {
		t.Fatalf("size = %+v", l.Frame.Size)
	}
	if l.SyncTextSize(fixedMeasurer{perRune: 7}) {
		t.Fatalf("second sync should be a no-op")
	}
	img := NewImageLayer("a.png", geom.P(0, 0))
	if img.SyncTextSize(fixedMeasurer{perRune: 7}) {
		t.Fatalf("image layers have no derived size")
	}
}

func TestEmptyTextKeepsMinimumWidth(t *testing.T) {
	l := NewTextLayer("", geom.P(40, 40))
	l.SyncTextSize(fixedMeasurer{perRune: 7})
	if l.Frame.Size.W != MinTextWidth || l.Frame.Size.H != l.Text.FontSize {
		t.Fatalf("size = %+v", l.Frame.Size)
	}
	if !l.Frame.Contains(geom.P(40, 40)) {
		t.Fatal("empty text box should still contain its center")
	}
}

func TestLabel(t *testing.T) {
	l := NewTextLayer("Hello", geom.P(0, 0))
	if l.Label() != "Text: Hello" {
		t.Fatalf("label = %q", l.Label())
	}
	img := NewImageLayer("a.png", geom.P(0, 0))
	img.ID = "img-1"
	if img.Label() != "Image img-1" {
		t.Fatalf("label = %q", img.Label())
	}
}
