/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layers holds the ordered layer list of a canvas and the identity of
// the selected layer. Index 0 is the bottom-most layer.
//
// A Store is owned by a single event loop and is not safe for concurrent use.
// Every mutation addressed to an unknown id is a silent no-op so that UI
// events racing a deletion never fail.
package layers

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/geom"
)

// Store is the ordered sequence of layers plus the current selection.
type Store struct {
	items    []domain.Layer
	selected domain.LayerID
	issued   map[domain.LayerID]struct{}
	newID    func(domain.Kind) domain.LayerID
}

// New returns an empty store issuing ULID based ids.
func New() *Store {
	return &Store{issued: make(map[domain.LayerID]struct{}), newID: ulidID}
}

func ulidID(k domain.Kind) domain.LayerID {
	prefix := "img-"
	if k == domain.KindText {
		prefix = "text-"
	}
	return domain.LayerID(prefix + strings.ToLower(ulid.Make().String()))
}

// freshID returns an id that has never been issued by this store.
func (s *Store) freshID(k domain.Kind) domain.LayerID {
	for {
		id := s.newID(k)
		if _, dup := s.issued[id]; !dup {
			s.issued[id] = struct{}{}
			return id
		}
	}
}

// Add appends l on top of the stack with a fresh id and returns that id.
// Any id already set on l is ignored.
func (s *Store) Add(l domain.Layer) domain.LayerID {
	l.ID = s.freshID(l.Kind)
	s.items = append(s.items, l)
	return l.ID
}

// Remove deletes the layer and clears the selection if it pointed at it.
func (s *Store) Remove(id domain.LayerID) {
	i := s.index(id)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
}

// Get returns a copy of the layer.
func (s *Store) Get(id domain.LayerID) (domain.Layer, bool) {
	i := s.index(id)
	if i < 0 {
		return domain.Layer{}, false
	}
	return s.items[i], true
}

// Update applies mutate to the stored layer in place. The id and kind are
// restored after the mutator runs; they are immutable.
func (s *Store) Update(id domain.LayerID, mutate func(l *domain.Layer)) bool {
	i := s.index(id)
	if i < 0 || mutate == nil {
		return false
	}
	l := &s.items[i]
	kind := l.Kind
	mutate(l)
	l.ID, l.Kind = id, kind
	return true
}

// MoveUp swaps the layer with the one above it.
func (s *Store) MoveUp(id domain.LayerID) bool {
	i := s.index(id)
	if i < 0 || i >= len(s.items)-1 {
		return false
	}
	s.items[i], s.items[i+1] = s.items[i+1], s.items[i]
	return true
}

// MoveDown swaps the layer with the one below it.
func (s *Store) MoveDown(id domain.LayerID) bool {
	i := s.index(id)
	if i <= 0 {
		return false
	}
	s.items[i], s.items[i-1] = s.items[i-1], s.items[i]
	return true
}

// Duplicate clones the layer with a fresh id, shifts it by offset and puts it
// on top of the stack. A copy of a pending image waits on the same decode.
func (s *Store) Duplicate(id domain.LayerID, offset geom.Pt) (domain.LayerID, bool) {
	src, ok := s.Get(id)
	if !ok {
		return "", false
	}
	if src.Kind == domain.KindImage && src.Image.State == domain.ImagePending && src.Image.LoadID == "" {
		src.Image.LoadID = id
	}
	src.Frame.Center = src.Frame.Center.Add(offset)
	return s.Add(src), true
}

// All returns the layers bottom-to-top (paint order).
func (s *Store) All() []domain.Layer {
	out := make([]domain.Layer, len(s.items))
	copy(out, s.items)
	return out
}

// OrderedTopToBottom returns the layers newest-on-top, the order used by hit
// testing and layer lists.
func (s *Store) OrderedTopToBottom() []domain.Layer {
	out := make([]domain.Layer, len(s.items))
	for i, l := range s.items {
		out[len(s.items)-1-i] = l
	}
	return out
}

// IDs returns the ids bottom-to-top.
func (s *Store) IDs() []domain.LayerID {
	out := make([]domain.LayerID, len(s.items))
	for i, l := range s.items {
		out[i] = l.ID
	}
	return out
}

// Index returns the z position of the layer, or -1.
func (s *Store) Index(id domain.LayerID) int { return s.index(id) }

// Len is the number of layers.
func (s *Store) Len() int { return len(s.items) }

// Select marks id as selected. Selecting an unknown id clears the selection.
func (s *Store) Select(id domain.LayerID) {
	if s.index(id) < 0 {
		s.selected = ""
		return
	}
	s.selected = id
}

// ClearSelection deselects any layer.
func (s *Store) ClearSelection() { s.selected = "" }

// SelectedID returns the selected id; stale ids resolve to no selection.
func (s *Store) SelectedID() (domain.LayerID, bool) {
	if s.selected == "" || s.index(s.selected) < 0 {
		return "", false
	}
	return s.selected, true
}

// Selected returns a copy of the selected layer.
func (s *Store) Selected() (domain.Layer, bool) {
	id, ok := s.SelectedID()
	if !ok {
		return domain.Layer{}, false
	}
	return s.Get(id)
}

func (s *Store) index(id domain.LayerID) int {
	if id == "" {
		return -1
	}
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
