/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"log/slog"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/imagesource"
)

// Completions delivers finished image decodes. It is nil without a decoder.
func (e *Editor) Completions() <-chan imagesource.Completion {
	if e.loader == nil {
		return nil
	}
	return e.loader.Completions()
}

// Pending is the number of image decodes not yet applied.
func (e *Editor) Pending() int {
	if e.loader == nil {
		return 0
	}
	return e.loader.Pending()
}

// ApplyCompletion stores a decode result on its layer, and on pending copies
// of it, and invalidates once. A completion nobody waits for is dropped.
// Failed decodes leave the layers inert.
func (e *Editor) ApplyCompletion(c imagesource.Completion) bool {
	if e.loader != nil {
		e.loader.Done()
	}
	fill := func(l *domain.Layer) {
		if l.Kind != domain.KindImage {
			return
		}
		l.Image.LoadID = ""
		if c.Err != nil {
			l.Image.State = domain.ImageFailed
			l.Image.Err = c.Err.Error()
			l.Image.Pixels = nil
			return
		}
		l.Image.Pixels = c.Result.Image
		l.Image.Natural = c.Result.Natural
		l.Image.State = domain.ImageReady
		l.Image.Err = ""
		if l.Image.AutoSize && c.Result.Natural.X > 0 && c.Result.Natural.Y > 0 {
			l.Frame.Size = geom.Size{
				W: float64(c.Result.Natural.X) / e.cfg.Scale,
				H: float64(c.Result.Natural.Y) / e.cfg.Scale,
			}
		}
	}
	applied := false
	for _, l := range e.store.All() {
		waiting := l.Kind == domain.KindImage && l.Image.State == domain.ImagePending && l.Image.LoadID == c.LayerID
		if l.ID == c.LayerID || waiting {
			applied = e.store.Update(l.ID, fill) || applied
		}
	}
	if !applied {
		e.log.Debug("completion for removed layer dropped", slog.String("layer", string(c.LayerID)))
		return false
	}
	if c.Err != nil {
		e.log.Warn("image unavailable", slog.String("layer", string(c.LayerID)),
			slog.String("source", c.Source), slog.Any("err", c.Err))
	}
	e.changed()
	return true
}

// WaitPending applies completions until no decode is outstanding or ctx is
// done. Headless callers use it before rendering.
func (e *Editor) WaitPending(ctx context.Context) error {
	if e.loader == nil {
		return nil
	}
	for e.loader.Pending() > 0 {
		select {
		case c := <-e.loader.Completions():
			e.ApplyCompletion(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
