/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes headless rendering over HTTP: a client posts an
// action script and gets the exported design back.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/export"
	"garmentcanvas/internal/imagesource"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/script"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/textlayout"
	"garmentcanvas/internal/version"
)

// Uploader stores an exported design and returns its key.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Options configure the handler. Zero values pick defaults.
type Options struct {
	Editor editor.Config
	// Decoder is shared by all requests and must be safe for concurrent use.
	Decoder imagesource.ImageDecoder
	// Fonts returns a provider for one request; providers are not shared
	// between goroutines. Nil uses the built-in bitmap font.
	Fonts        func() textlayout.Provider
	CORSOrigins  []string
	MaxBodyBytes int64
	Timeout      time.Duration
	Uploader     Uploader
	Tracker      telemetry.Tracker
}

const (
	defaultMaxBody = 8 << 20
	defaultTimeout = 60 * time.Second
)

type server struct {
	opts Options
	log  *slog.Logger
}

// New returns the router.
func New(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &server{opts: opts, log: applog.WithComponent("server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Layer-Count"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/presets", s.handlePresets)
		r.Get("/schema", s.handleSchema)
		r.Post("/layers", s.handleLayers)
		r.Post("/render", s.handleRender)
	})
	return r
}

// requestLogger logs one line per request and tags the request context with
// its id so log lines from deeper layers carry it.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := applog.ContextWith(r.Context(), slog.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.log.InfoContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok", "version": version.String()})
}

func (s *server) handlePresets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, export.Presets())
}

func (s *server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(script.Schema())
}

// run parses the body and replays it on a fresh editor.
func (s *server) run(w http.ResponseWriter, r *http.Request) (*editor.Editor, script.Result, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(w, r, http.StatusRequestEntityTooLarge, "script too large")
		} else {
			fail(w, r, http.StatusBadRequest, "read body")
		}
		return nil, script.Result{}, false
	}
	sc, err := script.Parse(body)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return nil, script.Result{}, false
	}
	cfg, err := sc.EditorConfig(s.opts.Editor)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return nil, script.Result{}, false
	}
	opts := []editor.Option{editor.WithTracker(s.opts.Tracker)}
	if s.opts.Decoder != nil {
		opts = append(opts, editor.WithDecoder(s.opts.Decoder))
	}
	if s.opts.Fonts != nil {
		opts = append(opts, editor.WithFonts(s.opts.Fonts()))
	}
	ed := editor.New(cfg, opts...)
	res, err := script.Run(r.Context(), ed, sc)
	if err != nil {
		ed.Close()
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusGatewayTimeout
		}
		s.log.WarnContext(r.Context(), "script failed", slog.Any("err", err))
		fail(w, r, status, err.Error())
		return nil, script.Result{}, false
	}
	return ed, res, true
}

func (s *server) handleLayers(w http.ResponseWriter, r *http.Request) {
	ed, res, ok := s.run(w, r)
	if !ok {
		return
	}
	defer ed.Close()
	render.JSON(w, r, res)
}

type uploadResponse struct {
	Key    string             `json:"key"`
	Format string             `json:"format"`
	Bytes  int                `json:"bytes"`
	Layers []editor.LayerInfo `json:"layers"`
}

// handleRender returns the exported design. ?format=pdf switches to PDF;
// ?upload=1 stores it with the configured uploader and answers with the key.
func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatPNG
	}
	if format != export.FormatPNG && format != export.FormatPDF {
		fail(w, r, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}
	upload := r.URL.Query().Get("upload") == "1"
	if upload && s.opts.Uploader == nil {
		fail(w, r, http.StatusNotImplemented, "no upload sink configured")
		return
	}

	ed, res, ok := s.run(w, r)
	if !ok {
		return
	}
	defer ed.Close()

	preset := presetFor(ed)
	var buf bytes.Buffer
	if err := export.Encode(&buf, format, ed.ExportImage(), preset); err != nil {
		s.log.ErrorContext(r.Context(), "export failed", slog.Any("err", err))
		fail(w, r, http.StatusInternalServerError, "export failed")
		return
	}
	if s.opts.Tracker != nil {
		s.opts.Tracker.Event(telemetry.EventExport, map[string]any{"format": format, "via": "http"})
	}

	if upload {
		name := "design." + format
		key, err := s.opts.Uploader.Upload(r.Context(), name, export.ContentType(format), buf.Bytes())
		if err != nil {
			s.log.ErrorContext(r.Context(), "upload failed", slog.Any("err", err))
			fail(w, r, http.StatusBadGateway, "upload failed")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, uploadResponse{Key: key, Format: format, Bytes: buf.Len(), Layers: res.Layers})
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "design."+format))
	w.Header().Set("X-Layer-Count", fmt.Sprint(len(res.Layers)))
	_, _ = w.Write(buf.Bytes())
}

// presetFor picks the paper format whose canvas matches the editor, so PDF
// pages get the right physical size. Custom canvases fall back to A4.
func presetFor(ed *editor.Editor) export.Preset {
	c, scale := ed.Canvas(), ed.Config().Scale
	for _, p := range export.Presets() {
		pc := p.Canvas(scale)
		if math.Abs(pc.W-c.W) < 1e-6 && math.Abs(pc.H-c.H) < 1e-6 {
			return p
		}
	}
	return export.A4
}
