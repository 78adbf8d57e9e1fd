/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/export"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/imagesource"
	applog "garmentcanvas/internal/log"
)

// EditorConfig applies the script's canvas section to base.
func (s Script) EditorConfig(base editor.Config) (editor.Config, error) {
	if s.Canvas == nil {
		return base, nil
	}
	cfg := base
	if s.Canvas.Scale > 0 {
		cfg.Scale = s.Canvas.Scale
	}
	if s.Canvas.Preset != "" {
		p, err := export.PresetByName(s.Canvas.Preset)
		if err != nil {
			return base, &Error{Message: "canvas", Err: err}
		}
		cfg.Canvas = p.Canvas(cfg.Scale)
	}
	if s.Canvas.Background != "" {
		if strings.EqualFold(s.Canvas.Background, "transparent") {
			cfg.Background = nil
		} else {
			c, err := domain.ParseColor(s.Canvas.Background)
			if err != nil {
				return base, &Error{Message: "canvas background", Err: err}
			}
			cfg.Background = c.NRGBA()
		}
	}
	if err := cfg.Validate(); err != nil {
		return base, &Error{Message: "canvas", Err: err}
	}
	return cfg, nil
}

// Result reports what a run produced.
type Result struct {
	Aliases map[string]domain.LayerID `json:"aliases"`
	Layers  []editor.LayerInfo        `json:"layers"`
}

// Runner executes steps against one editor.
type Runner struct {
	ed      *editor.Editor
	aliases map[string]domain.LayerID
	log     *slog.Logger
}

// NewRunner returns a runner over ed.
func NewRunner(ed *editor.Editor) *Runner {
	return &Runner{ed: ed, aliases: map[string]domain.LayerID{}, log: applog.WithComponent("script")}
}

// Run executes every step in order and waits for outstanding image decodes.
// The first failing step stops the run.
func Run(ctx context.Context, ed *editor.Editor, s Script) (Result, error) {
	r := NewRunner(ed)
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return r.result(), err
		}
		if err := r.Step(ctx, st); err != nil {
			if se, ok := err.(*Error); ok {
				se.Step = i + 1
				return r.result(), se
			}
			return r.result(), &Error{Step: i + 1, Op: st.Op, Message: "failed", Err: err}
		}
	}
	if err := ed.WaitPending(ctx); err != nil {
		return r.result(), fmt.Errorf("wait for images: %w", err)
	}
	return r.result(), nil
}

func (r *Runner) result() Result {
	al := make(map[string]domain.LayerID, len(r.aliases))
	for k, v := range r.aliases {
		al[k] = v
	}
	return Result{Aliases: al, Layers: r.ed.Layers()}
}

func (r *Runner) fail(st Step, msg string, err error) error {
	return &Error{Op: st.Op, Message: msg, Err: err}
}

// target resolves the layer a step addresses. ok is false when nothing is
// selected and no layer was named; such steps do nothing.
func (r *Runner) target(st Step) (domain.LayerID, bool, error) {
	if st.Layer == "" {
		id, ok := r.ed.Selected()
		return id, ok, nil
	}
	if id, ok := r.aliases[st.Layer]; ok {
		return id, true, nil
	}
	if _, ok := r.ed.Layer(domain.LayerID(st.Layer)); ok {
		return domain.LayerID(st.Layer), true, nil
	}
	return "", false, r.fail(st, fmt.Sprintf("unknown layer %q", st.Layer), nil)
}

func (st Step) point(def geom.Pt) geom.Pt {
	p := def
	if st.X != nil {
		p.X = *st.X
	}
	if st.Y != nil {
		p.Y = *st.Y
	}
	return p
}

func (r *Runner) remember(st Step, id domain.LayerID) {
	if st.As != "" {
		r.aliases[st.As] = id
	}
}

// Step executes one step.
func (r *Runner) Step(ctx context.Context, st Step) error {
	switch st.Op {
	case OpAddImage:
		id := r.ed.AddImageAt(ctx, imagesource.Ref(st.Source), st.point(domain.DefaultPosition))
		r.remember(st, id)
		// later pointer steps rely on the decoded size
		if err := r.ed.WaitPending(ctx); err != nil {
			return r.fail(st, "wait for image", err)
		}
		if l, _ := r.ed.Layer(id); l.Image.State == domain.ImageFailed {
			return r.fail(st, fmt.Sprintf("image %q unavailable: %s", st.Source, l.Image.Err), nil)
		}
		return nil
	case OpAddText:
		text := domain.DefaultText
		if st.Text != nil {
			text = *st.Text
		}
		r.remember(st, r.ed.AddTextAt(text, st.point(domain.DefaultPosition)))
		return nil
	case OpSelect:
		id, _, err := r.target(st)
		if err != nil {
			return err
		}
		r.ed.Select(id)
		return nil
	case OpPointerDown:
		r.ed.PointerDown(st.point(geom.Pt{}))
		return nil
	case OpPointerMove:
		r.ed.PointerMove(st.point(geom.Pt{}))
		return nil
	case OpPointerUp:
		r.ed.PointerUp(st.point(geom.Pt{}))
		return nil
	case OpPointerLeave:
		r.ed.PointerLeave()
		return nil
	case OpCanvas:
		p, err := export.PresetByName(st.Preset)
		if err != nil {
			return r.fail(st, "canvas", err)
		}
		r.ed.SetCanvas(p.Canvas(r.ed.Config().Scale))
		return nil
	}

	id, ok, err := r.target(st)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Debug("step skipped, no layer selected", slog.String("op", string(st.Op)))
		return nil
	}
	switch st.Op {
	case OpSetText:
		if st.Text != nil {
			r.ed.SetText(id, *st.Text)
		}
	case OpSetColor:
		c, err := domain.ParseColor(st.Color)
		if err != nil {
			return r.fail(st, "color", err)
		}
		r.ed.SetColor(id, c)
	case OpSetFontFamily:
		r.ed.SetFontFamily(id, st.FontFamily)
	case OpSetFontSize:
		r.ed.SetFontSize(id, st.FontSize)
	case OpSetStyle:
		style, err := domain.ParseTextStyle(st.Style)
		if err != nil {
			return r.fail(st, "style", err)
		}
		r.ed.SetTextStyle(id, style)
	case OpSetImageSize:
		if strings.EqualFold(st.Unit, "mm") {
			r.ed.SetImageSizeMM(id, st.Width, st.Height)
		} else {
			r.ed.SetImageSize(id, st.Width, st.Height)
		}
	case OpNudge:
		r.ed.Nudge(id, st.DX, st.DY)
	case OpResizeStep:
		r.ed.ResizeStep(id, st.Amount)
	case OpMoveUp:
		r.ed.MoveUp(id)
	case OpMoveDown:
		r.ed.MoveDown(id)
	case OpDelete:
		r.ed.Delete(id)
	default:
		return r.fail(st, fmt.Sprintf("unknown op %q", st.Op), nil)
	}
	return nil
}
