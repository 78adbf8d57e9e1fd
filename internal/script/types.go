/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script replays action scripts against an editor. A script is a
// YAML or JSON document listing editor operations; it drives the CLI render
// command and the HTTP render endpoint.
package script

import "fmt"

// Script is a parsed action script.
type Script struct {
	Version int         `json:"version,omitempty" yaml:"version,omitempty"`
	Canvas  *CanvasSpec `json:"canvas,omitempty" yaml:"canvas,omitempty"`
	Steps   []Step      `json:"steps" yaml:"steps"`
}

// CanvasSpec sets up the canvas before the first step.
type CanvasSpec struct {
	Preset     string  `json:"preset,omitempty" yaml:"preset,omitempty"`
	Scale      float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Background string  `json:"background,omitempty" yaml:"background,omitempty"`
}

// Op names a step.
type Op string

const (
	OpAddImage      Op = "add_image"
	OpAddText       Op = "add_text"
	OpSelect        Op = "select"
	OpPointerDown   Op = "pointer_down"
	OpPointerMove   Op = "pointer_move"
	OpPointerUp     Op = "pointer_up"
	OpPointerLeave  Op = "pointer_leave"
	OpSetText       Op = "set_text"
	OpSetColor      Op = "set_color"
	OpSetFontFamily Op = "set_font_family"
	OpSetFontSize   Op = "set_font_size"
	OpSetStyle      Op = "set_style"
	OpSetImageSize  Op = "set_image_size"
	OpNudge         Op = "nudge"
	OpResizeStep    Op = "resize_step"
	OpMoveUp        Op = "move_up"
	OpMoveDown      Op = "move_down"
	OpDelete        Op = "delete"
	OpCanvas        Op = "canvas"
)

// Step is one operation. Only the fields the op uses are read.
//
// Layer names the target by alias (see As) or id; when empty the selected
// layer is used. Positions are canvas units. Nudge moves by dx/dy nudge
// steps, resize_step by amount resize steps.
type Step struct {
	Op         Op       `json:"op" yaml:"op"`
	As         string   `json:"as,omitempty" yaml:"as,omitempty"`
	Layer      string   `json:"layer,omitempty" yaml:"layer,omitempty"`
	Source     string   `json:"source,omitempty" yaml:"source,omitempty"`
	Text       *string  `json:"text,omitempty" yaml:"text,omitempty"`
	X          *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y          *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	DX         float64  `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY         float64  `json:"dy,omitempty" yaml:"dy,omitempty"`
	Color      string   `json:"color,omitempty" yaml:"color,omitempty"`
	FontFamily string   `json:"font_family,omitempty" yaml:"font_family,omitempty"`
	FontSize   float64  `json:"font_size,omitempty" yaml:"font_size,omitempty"`
	Style      string   `json:"style,omitempty" yaml:"style,omitempty"`
	Width      float64  `json:"width,omitempty" yaml:"width,omitempty"`
	Height     float64  `json:"height,omitempty" yaml:"height,omitempty"`
	Unit       string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Amount     float64  `json:"amount,omitempty" yaml:"amount,omitempty"`
	Preset     string   `json:"preset,omitempty" yaml:"preset,omitempty"`
}

// Error locates a failure in a script. Step is 1-based; 0 means the
// document as a whole.
type Error struct {
	Step    int
	Op      Op
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Step == 0 {
		return msg
	}
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }
