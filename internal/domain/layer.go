/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the layer data model of the canvas editor: a tagged
// variant over image and text content placed by a center-anchored frame.

import (
	"fmt"
	"image"

	"garmentcanvas/internal/geom"
)

// LayerID identifies a layer for the lifetime of a store. IDs are never reused.
type LayerID string

// Kind discriminates the layer variant. It is fixed at creation.
type Kind uint8

const (
	KindImage Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Defaults for newly created layers.
const (
	DefaultText       = "Custom Text"
	DefaultFontSize   = 20.0
	DefaultFontFamily = "Arial"
)

var (
	DefaultPosition         = geom.P(120, 120)
	DefaultImagePlaceholder = geom.Size{W: 100, H: 100}
)

// ImageState tracks the asynchronous decode of an image layer.
type ImageState uint8

const (
	ImagePending ImageState = iota
	ImageReady
	ImageFailed
)

func (s ImageState) String() string {
	switch s {
	case ImageReady:
		return "ready"
	case ImageFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Image is the payload of an image layer. Pixels is nil until the decode
// completes; decoded images are treated as immutable and may be shared.
type Image struct {
	Source  string
	Pixels  image.Image
	State   ImageState
	Natural image.Point // decoded pixel dimensions
	// AutoSize is true until the user changes the layer size; while set, the
	// decoded natural size replaces the placeholder size.
	AutoSize bool
	Err      string
	// LoadID names the layer whose decode fills this one. It is set on copies
	// of a pending image and cleared once pixels arrive.
	LoadID LayerID
}

// Text is the payload of a text layer. The layer size is derived from it.
type Text struct {
	Content    string
	FontSize   float64
	Color      Color
	FontFamily string
	Style      TextStyle
}

// Layer is one positionable, rotatable element of the composite.
// Only the payload matching Kind is meaningful.
type Layer struct {
	ID    LayerID
	Kind  Kind
	Frame geom.Frame
	Image Image
	Text  Text
}

// NewImageLayer returns a pending image layer centered at at.
func NewImageLayer(source string, at geom.Pt) Layer {
	return Layer{
		Kind:  KindImage,
		Frame: geom.Frame{Center: at, Size: DefaultImagePlaceholder},
		Image: Image{Source: source, State: ImagePending, AutoSize: true},
	}
}

// NewTextLayer returns a text layer with the default font settings. Its size
// is zero until measured.
func NewTextLayer(content string, at geom.Pt) Layer {
	return Layer{
		Kind:  KindText,
		Frame: geom.Frame{Center: at},
		Text: Text{
			Content:    content,
			FontSize:   DefaultFontSize,
			Color:      Black,
			FontFamily: DefaultFontFamily,
			Style:      StyleNormal,
		},
	}
}

// TextMeasurer derives the box of a text payload from font metrics.
type TextMeasurer interface {
	MeasureText(t Text) geom.Size
}

// MinTextWidth keeps empty text hit-testable.
const MinTextWidth = 1

// SyncTextSize re-derives the size of a text layer and reports whether it
// changed. It is a no-op for image layers or a nil measurer.
func (l *Layer) SyncTextSize(m TextMeasurer) bool {
	if l.Kind != KindText || m == nil {
		return false
	}
	sz := m.MeasureText(l.Text)
	if !(sz.W >= MinTextWidth) {
		sz.W = MinTextWidth
	}
	if sz == l.Frame.Size {
		return false
	}
	l.Frame.Size = sz
	return true
}

// Drawable reports whether the layer has content ready to paint.
func (l Layer) Drawable() bool {
	switch l.Kind {
	case KindImage:
		return l.Image.State == ImageReady && l.Image.Pixels != nil
	case KindText:
		return true
	}
	return false
}

// Label is the line shown for the layer in a layer list.
func (l Layer) Label() string {
	if l.Kind == KindText {
		return fmt.Sprintf("Text: %s", l.Text.Content)
	}
	return fmt.Sprintf("Image %s", l.ID)
}
