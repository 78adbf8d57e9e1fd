/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imagesource fetches and decodes the pixels behind image layers.
// References may be file paths, http(s) URLs or base64 data URIs; in-memory
// bytes can be passed directly. Remote fetches go through the asset cache.
package imagesource

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"garmentcanvas/internal/assetcache"
	applog "garmentcanvas/internal/log"
)

// ErrUnsupportedSource is returned for references no loader understands.
var ErrUnsupportedSource = errors.New("unsupported image source")

// ErrHostNotAllowed is returned when a URL host is outside the allow list.
var ErrHostNotAllowed = errors.New("image host not allowed")

// Source names an image. Data, when set, wins over Ref.
type Source struct {
	Ref  string
	Data []byte
}

// Bytes returns a source over in-memory data labelled ref.
func Bytes(ref string, data []byte) Source { return Source{Ref: ref, Data: data} }

// Ref returns a source resolved by reference.
func Ref(ref string) Source { return Source{Ref: ref} }

// Decoded is a decoded image plus its natural size.
type Decoded struct {
	Image   image.Image
	Format  string
	Natural image.Point
}

// TokenFunc supplies a bearer token for remote fetches; an empty token sends
// no Authorization header.
type TokenFunc func(ctx context.Context) (string, error)

// Options configure a Decoder. Zero values pick defaults.
type Options struct {
	Timeout      time.Duration // per remote fetch, default 15s
	MaxBytes     int64         // per image, default 32 MiB
	MaxPixels    int64         // decoded width*height, default 64 Mpx
	AllowedHosts []string      // empty allows every host
	BaseDir      string        // relative file references resolve against it
	NoFiles      bool          // reject file paths and file:// references
	Token        TokenFunc
	Cache        *assetcache.Cache
	Client       *http.Client
}

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxBytes  = 32 << 20
	defaultMaxPixels = 8192 * 8192
)

// ErrTooLarge is returned for images whose declared dimensions exceed
// Options.MaxPixels.
var ErrTooLarge = errors.New("image too large")

// Decoder resolves and decodes sources. It is safe for concurrent use.
type Decoder struct {
	opts   Options
	client *http.Client
	log    *slog.Logger
}

// NewDecoder returns a decoder with opts.
func NewDecoder(opts Options) *Decoder {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = defaultMaxPixels
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Decoder{opts: opts, client: client, log: applog.WithComponent("imagesource")}
}

// Decode fetches and decodes src.
func (d *Decoder) Decode(ctx context.Context, src Source) (Decoded, error) {
	data, err := d.Fetch(ctx, src)
	if err != nil {
		return Decoded{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode image %s: %w", describe(src), err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > d.opts.MaxPixels {
		return Decoded{}, fmt.Errorf("%s is %dx%d: %w", describe(src), cfg.Width, cfg.Height, ErrTooLarge)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode image %s: %w", describe(src), err)
	}
	b := img.Bounds()
	return Decoded{Image: img, Format: format, Natural: image.Pt(b.Dx(), b.Dy())}, nil
}

// Fetch returns the raw bytes of src.
func (d *Decoder) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.Data != nil {
		return d.limit(src.Data, describe(src))
	}
	ref := strings.TrimSpace(src.Ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty reference: %w", ErrUnsupportedSource)
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return d.limit(data, "data uri")
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return d.fetchRemote(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return d.readFile(u.Path)
	case strings.Contains(ref, "://"):
		return nil, fmt.Errorf("%s: %w", ref, ErrUnsupportedSource)
	default:
		return d.readFile(ref)
	}
}

func (d *Decoder) limit(data []byte, what string) ([]byte, error) {
	if int64(len(data)) > d.opts.MaxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", what, d.opts.MaxBytes)
	}
	return data, nil
}

func (d *Decoder) readFile(path string) ([]byte, error) {
	if d.opts.NoFiles {
		return nil, fmt.Errorf("%s: local files disabled: %w", path, ErrUnsupportedSource)
	}
	if !filepath.IsAbs(path) && d.opts.BaseDir != "" {
		path = filepath.Join(d.opts.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return d.readLimited(f, path)
}

func (d *Decoder) readLimited(r io.Reader, what string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return d.limit(data, what)
}

func (d *Decoder) hostAllowed(host string) bool {
	if len(d.opts.AllowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range d.opts.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (d *Decoder) fetchRemote(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !d.hostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%s: %w", u.Hostname(), ErrHostNotAllowed)
	}
	if c := d.opts.Cache; c != nil {
		if e, ok, err := c.Get(ctx, ref); err != nil {
			d.log.Warn("asset cache read failed", slog.String("url", ref), slog.Any("err", err))
		} else if ok {
			return e.Data, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	if d.opts.Token != nil {
		tok, err := d.opts.Token(ctx)
		if err != nil {
			d.log.Warn("token lookup failed", slog.Any("err", err))
		} else if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", u.Redacted(), resp.StatusCode)
	}
	data, err := d.readLimited(resp.Body, u.Redacted())
	if err != nil {
		return nil, err
	}
	d.log.Debug("fetched image", slog.String("url", u.Redacted()), slog.Int("bytes", len(data)), slog.Duration("took", time.Since(start)))
	if c := d.opts.Cache; c != nil {
		e := assetcache.Entry{Key: ref, ContentType: resp.Header.Get("Content-Type"), ETag: resp.Header.Get("ETag"), Data: data}
		if err := c.Put(ctx, e); err != nil {
			d.log.Warn("asset cache write failed", slog.String("url", ref), slog.Any("err", err))
		}
	}
	return data, nil
}

// decodeDataURI accepts data:[<mediatype>][;base64],<data>.
func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri: %w", ErrUnsupportedSource)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(s), nil
}

func describe(src Source) string {
	switch {
	case strings.HasPrefix(src.Ref, "data:"):
		return "data uri"
	case src.Ref != "":
		return src.Ref
	case src.Data != nil:
		return "bytes"
	}
	return "source"
}
