/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"garmentcanvas/internal/assetcache"
	"garmentcanvas/internal/config"
	"garmentcanvas/internal/domain"
	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/export"
	"garmentcanvas/internal/geom"
	"garmentcanvas/internal/gesture"
	"garmentcanvas/internal/imagesource"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/textlayout"
)

// runtime holds the collaborators built from the user configuration.
type runtime struct {
	cfg     config.AppConfig
	token   string
	cache   *assetcache.Cache
	decoder *imagesource.Decoder
	fonts   *textlayout.FontLibrary
	tracker *telemetry.Client
	log     *slog.Logger
}

func setup(ctx context.Context, baseDir string) (*runtime, error) {
	cfg, token, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	rt := &runtime{cfg: cfg, token: token, log: applog.WithComponent("cli")}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	rt.tracker = telemetry.New(tcfg)
	telemetry.SetDefault(rt.tracker)

	if path, err := cfg.Assets.ResolvedCachePath(); err != nil {
		rt.log.Warn("asset cache disabled", slog.Any("err", err))
	} else if c, err := assetcache.Open(ctx, path, cfg.Assets.CacheMaxBytes); err != nil {
		rt.log.Warn("asset cache disabled", slog.String("path", path), slog.Any("err", err))
	} else {
		rt.cache = c
	}

	rt.decoder = rt.decoderFor(baseDir, false)

	fonts, err := loadFonts(cfg.Assets.FontDir, rt.log)
	if err != nil {
		return nil, err
	}
	rt.fonts = fonts
	return rt, nil
}

// loadFonts returns a library holding the fonts in dir. The bundled Go
// fonts stay shared and untouched; OTProvider falls back to them.
func loadFonts(dir string, l *slog.Logger) (*textlayout.FontLibrary, error) {
	if _, err := textlayout.GoFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	lib := textlayout.NewFontLibrary()
	if dir == "" {
		return lib, nil
	}
	n, err := lib.LoadDir(dir)
	if err != nil {
		l.Warn("font dir", slog.String("dir", dir), slog.Any("err", err))
	}
	l.Debug("fonts loaded", slog.String("dir", dir), slog.Int("count", n))
	return lib, nil
}

// decoderFor builds a decoder resolving relative paths against baseDir.
// All decoders share the asset cache.
func (rt *runtime) decoderFor(baseDir string, noFiles bool) *imagesource.Decoder {
	a := rt.cfg.Assets
	opts := imagesource.Options{
		Timeout:      a.HTTPTimeout(),
		MaxBytes:     a.MaxImageBytes,
		AllowedHosts: a.AllowedHosts,
		BaseDir:      baseDir,
		NoFiles:      noFiles,
		Cache:        rt.cache,
		Token: func(context.Context) (string, error) {
			return rt.token, nil
		},
	}
	return imagesource.NewDecoder(opts)
}

func (rt *runtime) close() {
	if rt.cache != nil {
		_ = rt.cache.Close()
		rt.cache = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rt.tracker.Flush(ctx)
	rt.tracker.Close()
}

// editorConfig maps the configured canvas and editor sections.
func (rt *runtime) editorConfig() (editor.Config, error) {
	c := rt.cfg
	p, err := export.PresetByName(c.Canvas.Preset)
	if err != nil {
		return editor.Config{}, err
	}
	ec := editor.DefaultConfig()
	ec.Scale = c.Canvas.Scale
	ec.Canvas = p.Canvas(ec.Scale)
	ec.Gesture = gesture.Config{
		HandleSize: c.Editor.HandleSize,
		MinSize:    c.Editor.MinSize,
		CopyOffset: geom.P(c.Editor.CopyOffsetX, c.Editor.CopyOffsetY),
	}
	ec.NudgeStep = c.Editor.NudgeStep
	ec.ResizeStep = c.Editor.ResizeStep
	switch bg := c.Canvas.Background; {
	case bg == "":
	case strings.EqualFold(bg, "transparent"):
		ec.Background = nil
	default:
		col, err := domain.ParseColor(bg)
		if err != nil {
			return editor.Config{}, fmt.Errorf("canvas background: %w", err)
		}
		ec.Background = col.NRGBA()
	}
	if err := ec.Validate(); err != nil {
		return editor.Config{}, err
	}
	return ec, nil
}

// crashDir sits next to the config file.
func crashDir() string {
	p, err := config.ConfigPath()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(filepath.Dir(p), "crash")
}

// presetOf picks the preset whose canvas matches cfg, A4 otherwise.
func presetOf(cfg editor.Config) export.Preset {
	for _, p := range export.Presets() {
		c := p.Canvas(cfg.Scale)
		if math.Abs(c.W-cfg.Canvas.W) < 1e-6 && math.Abs(c.H-cfg.Canvas.H) < 1e-6 {
			return p
		}
	}
	return export.A4
}

func encode(format string, img image.Image, p export.Preset) ([]byte, error) {
	var buf bytes.Buffer
	if err := export.Encode(&buf, format, img, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
