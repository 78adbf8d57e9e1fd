//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"garmentcanvas/internal/crash"
	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/export"
	"garmentcanvas/internal/imagesource"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/version"
)

// Run opens the editor window and blocks until it is closed.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	var ed *editor.Editor
	crashOpts := opts.Crash
	crashOpts.Dump = func() ([]byte, error) {
		if ed == nil {
			return nil, nil
		}
		return ed.Snapshot()
	}
	defer crash.Recover(crashOpts)

	fyneApp := app.NewWithID("garmentcanvas")
	w := fyneApp.NewWindow("Garment Canvas")
	prefs := fyneApp.Preferences()
	w.Resize(fyne.NewSize(
		float32(max(prefs.IntWithFallback("window.width", 1100), 800)),
		float32(max(prefs.IntWithFallback("window.height", 800), 600))))

	var (
		dc           *DesignCanvas
		refreshPanel func()
	)
	edOpts := []editor.Option{
		editor.WithFonts(opts.Fonts),
		editor.WithTracker(opts.Tracker),
		editor.WithInvalidate(func() {
			if dc != nil {
				dc.Refresh()
			}
			if refreshPanel != nil {
				refreshPanel()
			}
		}),
	}
	if opts.Decoder != nil {
		edOpts = append(edOpts, editor.WithDecoder(opts.Decoder))
	}
	ed = editor.New(opts.Editor, edOpts...)
	defer ed.Close()
	dc = NewDesignCanvas(ed)

	status := widget.NewLabel("Ready")
	families := opts.Families
	if len(families) == 0 {
		families = DefaultFamilies
	}
	preset := export.A4

	// layer list, top-to-bottom
	var rows []editor.LayerInfo
	syncing := false
	layerList := widget.NewList(
		func() int { return len(rows) },
		func() fyne.CanvasObject { return widget.NewLabel("layer") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(rows[i].Label) },
	)
	layerList.OnSelected = func(i widget.ListItemID) {
		if !syncing && i >= 0 && i < len(rows) {
			ed.Select(rows[i].ID)
		}
	}

	selected := func() (domain.LayerID, bool) { return ed.Selected() }
	withSelected := func(fn func(id domain.LayerID)) func() {
		return func() {
			if id, ok := selected(); ok {
				fn(id)
			}
		}
	}
	parseNum := func(s string) (float64, bool) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v, err == nil
	}

	// text properties
	textEntry := widget.NewEntry()
	textEntry.OnChanged = func(s string) {
		if !syncing {
			withSelected(func(id domain.LayerID) { ed.SetText(id, s) })()
		}
	}
	colorEntry := widget.NewEntry()
	colorEntry.SetPlaceHolder("#000000")
	colorEntry.OnSubmitted = func(s string) {
		c, err := domain.ParseColor(s)
		if err != nil {
			status.SetText(err.Error())
			return
		}
		withSelected(func(id domain.LayerID) { ed.SetColor(id, c) })()
	}
	familySelect := widget.NewSelect(families, func(s string) {
		if !syncing {
			withSelected(func(id domain.LayerID) { ed.SetFontFamily(id, s) })()
		}
	})
	fontSizeEntry := widget.NewEntry()
	fontSizeEntry.OnSubmitted = func(s string) {
		if v, ok := parseNum(s); ok {
			withSelected(func(id domain.LayerID) { ed.SetFontSize(id, v) })()
		}
	}
	styleRadio := widget.NewRadioGroup([]string{"normal", "bold", "italic"}, func(s string) {
		if syncing || s == "" {
			return
		}
		st, err := domain.ParseTextStyle(s)
		if err == nil {
			withSelected(func(id domain.LayerID) { ed.SetTextStyle(id, st) })()
		}
	})
	styleRadio.Horizontal = true
	textBox := container.NewVBox(
		widget.NewLabel("Text"), textEntry,
		widget.NewLabel("Color"), colorEntry,
		widget.NewLabel("Font family"), familySelect,
		widget.NewLabel("Font size"), fontSizeEntry,
		styleRadio,
	)

	// image properties, in millimetres of the printed design
	widthMM := widget.NewEntry()
	heightMM := widget.NewEntry()
	widthMM.OnSubmitted = func(s string) {
		if v, ok := parseNum(s); ok {
			withSelected(func(id domain.LayerID) { ed.SetImageSizeMM(id, v, 0) })()
		}
	}
	heightMM.OnSubmitted = func(s string) {
		if v, ok := parseNum(s); ok {
			withSelected(func(id domain.LayerID) { ed.SetImageSizeMM(id, 0, v) })()
		}
	}
	imageBox := container.NewVBox(
		widget.NewLabel("Width (mm)"), widthMM,
		widget.NewLabel("Height (mm)"), heightMM,
	)

	nudge := func(dx, dy float64) func() {
		return withSelected(func(id domain.LayerID) { ed.Nudge(id, dx, dy) })
	}
	common := container.NewVBox(
		container.NewGridWithColumns(4,
			widget.NewButton("←", nudge(-1, 0)),
			widget.NewButton("↑", nudge(0, -1)),
			widget.NewButton("↓", nudge(0, 1)),
			widget.NewButton("→", nudge(1, 0)),
		),
		container.NewGridWithColumns(2,
			widget.NewButton("Resize -", withSelected(func(id domain.LayerID) { ed.ResizeStep(id, -1) })),
			widget.NewButton("Resize +", withSelected(func(id domain.LayerID) { ed.ResizeStep(id, 1) })),
		),
		container.NewGridWithColumns(3,
			widget.NewButton("Move up", withSelected(func(id domain.LayerID) { ed.MoveUp(id) })),
			widget.NewButton("Move down", withSelected(func(id domain.LayerID) { ed.MoveDown(id) })),
			widget.NewButton("Delete", withSelected(func(id domain.LayerID) { ed.Delete(id) })),
		),
	)

	refreshPanel = func() {
		syncing = true
		defer func() { syncing = false }()
		rows = ed.Layers()
		layerList.Refresh()
		layerList.UnselectAll()
		for i, r := range rows {
			if r.Selected {
				layerList.Select(i)
			}
		}
		id, ok := selected()
		if !ok {
			textBox.Hide()
			imageBox.Hide()
			common.Hide()
			return
		}
		common.Show()
		l, _ := ed.Layer(id)
		if l.Kind == domain.KindText {
			imageBox.Hide()
			textBox.Show()
			if textEntry.Text != l.Text.Content {
				textEntry.SetText(l.Text.Content)
			}
			colorEntry.SetText(l.Text.Color.Hex())
			familySelect.SetSelected(l.Text.FontFamily)
			fontSizeEntry.SetText(strconv.FormatFloat(l.Text.FontSize, 'f', 1, 64))
			styleRadio.SetSelected(l.Text.Style.String())
			return
		}
		textBox.Hide()
		imageBox.Show()
		scale := ed.Config().Scale
		widthMM.SetText(strconv.FormatFloat(l.Frame.Size.W/editor.PixelsPerMM*scale, 'f', 1, 64))
		heightMM.SetText(strconv.FormatFloat(l.Frame.Size.H/editor.PixelsPerMM*scale, 'f', 1, 64))
	}

	// image decodes finish off the UI goroutine
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case c := <-ed.Completions():
				fyne.Do(func() { ed.ApplyCompletion(c) })
			case <-stop:
				return
			}
		}
	}()

	addImage := func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				dialog.ShowError(fmt.Errorf("read image: %w", err), w)
				return
			}
			ed.AddImage(applog.ContextWith(context.Background(), slog.String("source", rc.URI().Name())), imagesource.Bytes(rc.URI().Name(), data))
			status.SetText("Loading " + rc.URI().Name())
		}, w)
		d.Show()
	}
	exportDesign := func() {
		d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if wc == nil {
				return
			}
			defer wc.Close()
			format := export.FormatFromPath(wc.URI().Name())
			var buf bytes.Buffer
			if err := export.Encode(&buf, format, ed.ExportImage(), preset); err != nil {
				dialog.ShowError(err, w)
				return
			}
			if _, err := wc.Write(buf.Bytes()); err != nil {
				dialog.ShowError(fmt.Errorf("write export: %w", err), w)
				return
			}
			if opts.Tracker != nil {
				opts.Tracker.Event(telemetry.EventExport, map[string]any{"format": format, "via": "ui"})
			}
			status.SetText("Exported " + wc.URI().Name())
		}, w)
		name := opts.ExportName
		if name == "" {
			name = export.DefaultFileName
		}
		d.SetFileName(name)
		d.Show()
	}
	presetNames := make([]string, 0, 2)
	for _, p := range export.Presets() {
		presetNames = append(presetNames, p.Name)
	}
	presetSelect := widget.NewSelect(presetNames, func(name string) {
		p, err := export.PresetByName(name)
		if err != nil {
			return
		}
		preset = p
		ed.SetCanvas(p.Canvas(ed.Config().Scale))
	})
	presetSelect.SetSelected(preset.Name)

	toolbar := container.NewHBox(
		widget.NewButton("Add image", addImage),
		widget.NewButton("Add text", func() { ed.AddText(domain.DefaultText) }),
		widget.NewButton("Export", exportDesign),
		presetSelect,
	)
	side := container.NewBorder(widget.NewLabel("Layers"), container.NewVBox(textBox, imageBox, common), nil, nil, layerList)
	split := container.NewHSplit(dc, side)
	split.Offset = 0.68
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))
	refreshPanel()

	w.SetOnClosed(func() {
		close(stop)
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	return nil
}
