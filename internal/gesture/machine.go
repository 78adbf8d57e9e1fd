/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"log/slog"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/hittest"
	"garmentcanvas/internal/layers"
	applog "garmentcanvas/internal/log"
)

// Config tunes the interaction geometry.
type Config struct {
	HandleSize float64
	MinSize    float64
	CopyOffset geom.Pt
}

// DefaultConfig returns the stock handle size, a 1 unit minimum size and a
// (10,10) copy offset.
func DefaultConfig() Config {
	return Config{HandleSize: geom.DefaultHandleSize, MinSize: 1, CopyOffset: geom.P(10, 10)}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.HandleSize <= 0 {
		c.HandleSize = d.HandleSize
	}
	if c.MinSize <= 0 {
		c.MinSize = d.MinSize
	}
	return c
}

// Outcome describes what a pointer event did. Changed is set whenever the
// store was mutated (geometry, selection, deletion, duplication).
type Outcome struct {
	Mode    Mode
	Target  hittest.Target
	Changed bool
	Deleted domain.LayerID
	Copied  domain.LayerID
}

// Machine owns the current session and applies it to a store. It must be
// driven from the goroutine that owns the store.
type Machine struct {
	store   *layers.Store
	cfg     Config
	measure domain.TextMeasurer
	session Session
	log     *slog.Logger
}

// New returns an idle machine over store. measure may be nil.
func New(store *layers.Store, cfg Config, measure domain.TextMeasurer) *Machine {
	return &Machine{
		store:   store,
		cfg:     cfg.normalized(),
		measure: measure,
		log:     applog.WithComponent("gesture"),
	}
}

// Config returns the effective configuration.
func (m *Machine) Config() Config { return m.cfg }

// Session returns the open session (zero value when idle).
func (m *Machine) Session() Session { return m.session }

// Mode is the current interaction mode.
func (m *Machine) Mode() Mode { return m.session.Mode }

// PointerDown resolves p and either opens a session on the selected layer or
// selects another layer's body. Misses leave everything unchanged.
func (m *Machine) PointerDown(p geom.Pt) Outcome {
	if m.session.Active() {
		// a press without a release; close the stale session first
		m.end(false)
	}
	t := hittest.Resolve(p, m.store, m.cfg.HandleSize)
	if !t.Hit() {
		return Outcome{Target: t}
	}
	if !t.OnSelected(m.store) {
		m.store.Select(t.LayerID)
		m.log.Debug("select", slog.String("layer", string(t.LayerID)))
		return Outcome{Target: t, Changed: true}
	}
	l, _ := m.store.Get(t.LayerID)
	m.session = Begin(l, t, p)
	m.log.Debug("gesture begin",
		slog.String("mode", m.session.Mode.String()),
		slog.String("layer", string(l.ID)))
	return Outcome{Mode: m.session.Mode, Target: t}
}

// PointerMove applies the open session to its layer.
func (m *Machine) PointerMove(p geom.Pt) Outcome {
	s := m.session
	if !s.Active() {
		return Outcome{}
	}
	switch s.Mode {
	case Deleting, Copying:
		return Outcome{Mode: s.Mode}
	}
	changed := m.store.Update(s.LayerID, func(l *domain.Layer) {
		*l = s.Apply(*l, p, m.cfg, m.measure)
	})
	if !changed {
		// the layer vanished underneath the gesture
		m.session = Session{}
		return Outcome{Changed: false}
	}
	return Outcome{Mode: s.Mode, Changed: true}
}

// PointerUp ends the session, committing a pending delete or copy.
func (m *Machine) PointerUp(geom.Pt) Outcome { return m.end(true) }

// PointerLeave ends the session exactly like a release.
func (m *Machine) PointerLeave() Outcome { return m.end(true) }

// Cancel drops the session without committing anything.
func (m *Machine) Cancel() { m.session = Session{} }

func (m *Machine) end(commit bool) Outcome {
	s := m.session
	m.session = Session{}
	if !s.Active() {
		return Outcome{}
	}
	out := Outcome{Mode: Idle}
	if !commit {
		return out
	}
	switch s.Mode {
	case Deleting:
		if _, ok := m.store.Get(s.LayerID); ok {
			m.store.Remove(s.LayerID)
			out.Deleted, out.Changed = s.LayerID, true
			m.log.Debug("layer deleted", slog.String("layer", string(s.LayerID)))
		}
	case Copying:
		if id, ok := m.store.Duplicate(s.LayerID, m.cfg.CopyOffset); ok {
			m.store.Select(id)
			out.Copied, out.Changed = id, true
			m.log.Debug("layer copied", slog.String("from", string(s.LayerID)), slog.String("layer", string(id)))
		}
	default:
		// geometry was already applied on move; release only repaints the handles
		out.Changed = true
	}
	return out
}
