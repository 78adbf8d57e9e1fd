/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores parsed OpenType fonts keyed by family, weight and slant.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	weight int
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// Add registers an already parsed font.
func (fl *FontLibrary) Add(family string, weight int, italic bool, f *opentype.Font) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: normFamily(family), weight: weight, italic: italic}] = f
}

// LoadTTF loads a font file into the library under the given family/weight/italic.
func (fl *FontLibrary) LoadTTF(family string, weight int, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fl.Add(family, weight, italic, f)
	return nil
}

// LoadDir loads every .ttf/.otf file in dir. The family is the file name up
// to the first '-', and "Bold"/"Italic" suffixes select the variant, so
// "Roboto-BoldItalic.ttf" registers Roboto 700 italic. It returns the number
// of fonts loaded; unreadable files are skipped and reported in err.
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir %s: %w", dir, err)
	}
	var n int
	var firstErr error
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		family, variant, _ := strings.Cut(base, "-")
		weight := 400
		if strings.Contains(variant, "Bold") {
			weight = 700
		}
		italic := strings.Contains(variant, "Italic")
		if err := fl.LoadTTF(family, weight, italic, filepath.Join(dir, e.Name())); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}

// Families lists the registered family names (lower case).
func (fl *FontLibrary) Families() []string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for k := range fl.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	return out
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	fam := normFamily(spec.Family)
	if f, ok := fl.fonts[fontKey{family: fam, weight: spec.Weight, italic: spec.Italic}]; ok {
		return f
	}
	// same family, any variant: prefer matching slant, then regular weight
	var fallback *opentype.Font
	for k, f := range fl.fonts {
		if k.family != fam {
			continue
		}
		if k.italic == spec.Italic {
			return f
		}
		if fallback == nil || k.weight == 400 {
			fallback = f
		}
	}
	return fallback
}

// builtin families backed by the Go fonts. Browser family names used by the
// property panel map to their closest Go font.
var builtinFamilies = map[string]string{
	"arial":           "go",
	"helvetica":       "go",
	"verdana":         "go",
	"sans-serif":      "go",
	"go":              "go",
	"courier new":     "go mono",
	"courier":         "go mono",
	"monospace":       "go mono",
	"go mono":         "go mono",
	"georgia":         "go medium",
	"times new roman": "go medium",
	"serif":           "go medium",
	"go medium":       "go medium",
}

var (
	goFontsOnce sync.Once
	goFonts     *FontLibrary
	goFontsErr  error
)

// GoFonts returns the shared library of bundled Go fonts.
func GoFonts() (*FontLibrary, error) {
	goFontsOnce.Do(func() {
		lib := NewFontLibrary()
		for _, e := range []struct {
			family string
			weight int
			italic bool
			ttf    []byte
		}{
			{"go", 400, false, goregular.TTF},
			{"go", 700, false, gobold.TTF},
			{"go", 400, true, goitalic.TTF},
			{"go", 700, true, gobolditalic.TTF},
			{"go mono", 400, false, gomono.TTF},
			{"go mono", 700, false, gomonobold.TTF},
			{"go mono", 400, true, gomonoitalic.TTF},
			{"go mono", 700, true, gomonobolditalic.TTF},
			{"go medium", 400, false, gomedium.TTF},
			{"go medium", 400, true, gomediumitalic.TTF},
		} {
			f, err := opentype.Parse(e.ttf)
			if err != nil {
				goFontsErr = fmt.Errorf("parse bundled font %s: %w", e.family, err)
				return
			}
			lib.Add(e.family, e.weight, e.italic, f)
		}
		goFonts = lib
	})
	return goFonts, goFontsErr
}

// OTProvider resolves FontSpec from a user FontLibrary first, then the
// bundled Go fonts, then Fallback. Faces are cached per size; an OTProvider
// must not be shared between goroutines that draw concurrently.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72, so SizePx maps 1:1 to pixels
	Fallback Provider

	mu    sync.Mutex
	faces map[faceKey]cachedFace
}

// resize gestures produce a new size per pointer move
const maxCachedFaces = 64

type faceKey struct {
	font *opentype.Font
	size float64
}

type cachedFace struct {
	face font.Face
	met  Metrics
}

// NewOTProvider returns a provider over lib (may be nil) with the Go fonts
// as the built-in set.
func NewOTProvider(lib *FontLibrary) *OTProvider { return &OTProvider{Lib: lib} }

func (p *OTProvider) lookup(spec FontSpec) *opentype.Font {
	if f := p.Lib.find(spec); f != nil {
		return f
	}
	gf, err := GoFonts()
	if err != nil {
		return nil
	}
	fam, ok := builtinFamilies[normFamily(spec.Family)]
	if !ok {
		fam = "go"
	}
	spec.Family = fam
	return gf.find(spec)
}

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePx <= 0 {
		spec.SizePx = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if f := p.lookup(spec); f != nil {
		key := faceKey{font: f, size: spec.SizePx}
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.faces[key]; ok {
			return c.face, c.met
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.SizePx, DPI: dpi, Hinting: font.HintingNone})
		if err == nil {
			m := face.Metrics()
			c := cachedFace{face: face, met: Metrics{
				Size:    spec.SizePx * dpi / 72,
				Ascent:  float64(m.Ascent) / 64,
				Descent: float64(m.Descent) / 64,
				LineGap: float64(m.Height-m.Ascent-m.Descent) / 64,
			}}
			if p.faces == nil || len(p.faces) >= maxCachedFaces {
				p.faces = make(map[faceKey]cachedFace)
			}
			p.faces[key] = c
			return c.face, c.met
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
