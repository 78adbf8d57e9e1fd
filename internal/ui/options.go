/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"garmentcanvas/internal/crash"
	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/imagesource"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/textlayout"
)

// Options configure the desktop shell.
type Options struct {
	Editor   editor.Config
	Decoder  imagesource.ImageDecoder
	Fonts    textlayout.Provider
	Families []string
	Tracker  telemetry.Tracker
	// Crash is used for panic recovery; the editor snapshot is attached.
	Crash crash.Options
	// ExportName is the suggested file name in the export dialog.
	ExportName string
}

// DefaultFamilies are offered in the font selector when no font library
// lists its own.
var DefaultFamilies = []string{"Arial", "Courier New", "Georgia", "Times New Roman", "Verdana"}
