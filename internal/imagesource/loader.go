/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imagesource

import (
	"context"
	"log/slog"
	"sync"

	"garmentcanvas/internal/domain"
	applog "garmentcanvas/internal/log"
)

// Completion reports the outcome of one asynchronous decode.
type Completion struct {
	LayerID domain.LayerID
	Source  string
	Result  Decoded
	Err     error
}

// ImageDecoder is the decoding dependency of a Loader.
type ImageDecoder interface {
	Decode(ctx context.Context, src Source) (Decoded, error)
}

// Loader runs decodes in background goroutines and posts completions on a
// buffered channel that the owning event loop drains.
type Loader struct {
	dec    ImageDecoder
	out    chan Completion
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger

	mu      sync.Mutex
	pending int
}

// NewLoader returns a loader over dec. buffer sizes the completion channel.
func NewLoader(dec ImageDecoder, buffer int) *Loader {
	if buffer <= 0 {
		buffer = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		dec:    dec,
		out:    make(chan Completion, buffer),
		ctx:    ctx,
		cancel: cancel,
		log:    applog.WithComponent("imagesource"),
	}
}

// Completions is the channel decode results arrive on.
func (l *Loader) Completions() <-chan Completion { return l.out }

// Pending is the number of decodes whose completion has not been delivered.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Done marks one delivered completion as consumed.
func (l *Loader) Done() {
	l.mu.Lock()
	if l.pending > 0 {
		l.pending--
	}
	l.mu.Unlock()
}

// Load starts decoding src for layer id. The completion is posted even on
// failure; it is dropped only when the loader is closed.
func (l *Loader) Load(ctx context.Context, id domain.LayerID, src Source) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		dctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(l.ctx, cancel)
		defer stop()

		res, err := l.dec.Decode(dctx, src)
		c := Completion{LayerID: id, Source: src.Ref, Result: res, Err: err}
		if err != nil {
			l.log.Warn("image decode failed", slog.String("layer", string(id)), slog.Any("err", err))
		}
		select {
		case l.out <- c:
		case <-l.ctx.Done():
			l.Done()
		}
	}()
}

// Close cancels in-flight decodes and waits for their goroutines.
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
}
