/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the per-user
// config directory, merged over Defaults and then overridden by GCV_*
// environment variables. Secrets never touch the file; the asset host token
// lives in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CanvasConfig selects the design surface.
type CanvasConfig struct {
	Preset     string  `yaml:"preset"`     // "A4" | "A3"
	Scale      float64 `yaml:"scale"`      // canvas units per output pixel divisor
	Background string  `yaml:"background"` // "" for transparent
}

// EditorConfig tunes interaction geometry and the property panel steps.
type EditorConfig struct {
	HandleSize  float64 `yaml:"handle_size"`
	MinSize     float64 `yaml:"min_size"`
	CopyOffsetX float64 `yaml:"copy_offset_x"`
	CopyOffsetY float64 `yaml:"copy_offset_y"`
	NudgeStep   float64 `yaml:"nudge_step"`
	ResizeStep  float64 `yaml:"resize_step"`
}

// AssetsConfig controls how image sources are fetched.
type AssetsConfig struct {
	HTTPTimeoutMs int      `yaml:"http_timeout_ms"`
	MaxImageBytes int64    `yaml:"max_image_bytes"`
	CachePath     string   `yaml:"cache_path"` // "" uses the user cache dir
	CacheMaxBytes int64    `yaml:"cache_max_bytes"`
	AllowedHosts  []string `yaml:"allowed_hosts"`
	FontDir       string   `yaml:"font_dir"`
	// the bearer token is not stored on disk; see Token
}

// ExportConfig sets export defaults and the optional S3 sink.
type ExportConfig struct {
	Format   string `yaml:"format"` // "png" | "pdf"
	FileName string `yaml:"file_name"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
}

// ServerConfig configures the optional HTTP render service.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxBodyKB   int      `yaml:"max_body_kb"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	EnableServer   bool `yaml:"enable_server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Editor        EditorConfig  `yaml:"editor"`
	Assets        AssetsConfig  `yaml:"assets"`
	Export        ExportConfig  `yaml:"export"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{Preset: "A4", Scale: 3, Background: "#ffffff"},
		Editor: EditorConfig{
			HandleSize: 20, MinSize: 1,
			CopyOffsetX: 10, CopyOffsetY: 10,
			NudgeStep: 2, ResizeStep: 3.78,
		},
		Assets: AssetsConfig{
			HTTPTimeoutMs: 15000,
			MaxImageBytes: 32 << 20,
			CacheMaxBytes: 128 << 20,
		},
		Export:  ExportConfig{Format: "png", FileName: "design.png"},
		Server:  ServerConfig{Addr: "127.0.0.1:8080", CORSOrigins: []string{"*"}, MaxBodyKB: 8192},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "GCV_CONFIG"
	EnvCanvasPreset   = "GCV_CANVAS_PRESET"
	EnvCanvasScale    = "GCV_CANVAS_SCALE"
	EnvAssetTimeoutMs = "GCV_ASSET_TIMEOUT_MS"
	EnvAssetCache     = "GCV_ASSET_CACHE"
	EnvAllowedHosts   = "GCV_ALLOWED_HOSTS"
	EnvFontDir        = "GCV_FONT_DIR"
	EnvS3Bucket       = "GCV_S3_BUCKET"
	EnvS3Region       = "GCV_S3_REGION"
	EnvServerAddr     = "GCV_SERVER_ADDR"
	EnvTelemetryOptIn = "GCV_TELEMETRY_OPT_IN"
	EnvEnableServer   = "GCV_ENABLE_SERVER"
	EnvAssetToken     = "GCV_ASSET_TOKEN"
	EnvLogLevel       = "GCV_LOG_LEVEL"
	EnvLogFormat      = "GCV_LOG_FORMAT"
	EnvLogSource      = "GCV_LOG_SOURCE"
	EnvLogFile        = "GCV_LOG_FILE"
)

// ConfigPath returns the per-user config file path. GCV_CONFIG wins.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GarmentCanvas")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GarmentCanvas")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "garmentcanvas")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "garmentcanvas")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and env
// overrides, and returns the asset token from the keyring alongside.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	return cfg, Token(), nil
}

// LoadFile is Load for an explicit path without the keyring lookup. A
// missing file yields the defaults; a malformed one is an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Save writes the user config YAML and stores token in the keyring when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if token != "" {
		if err := SetToken(token); err != nil {
			return err
		}
	}
	return nil
}

// MaxScale keeps an A3 export within the renderer's output limit.
const MaxScale = 16

// Validate rejects values no component can work with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Canvas.Scale <= 0 || c.Canvas.Scale > MaxScale {
		errs = append(errs, fmt.Errorf("canvas.scale must be in (0, %v], got %v", MaxScale, c.Canvas.Scale))
	}
	if c.Editor.HandleSize <= 0 {
		errs = append(errs, fmt.Errorf("editor.handle_size must be > 0, got %v", c.Editor.HandleSize))
	}
	if c.Editor.MinSize <= 0 {
		errs = append(errs, fmt.Errorf("editor.min_size must be > 0, got %v", c.Editor.MinSize))
	}
	switch strings.ToLower(c.Export.Format) {
	case "png", "pdf":
	default:
		errs = append(errs, fmt.Errorf("export.format must be png or pdf, got %q", c.Export.Format))
	}
	return errors.Join(errs...)
}

// HTTPTimeout is the asset fetch timeout.
func (a AssetsConfig) HTTPTimeout() time.Duration {
	if a.HTTPTimeoutMs <= 0 {
		return time.Duration(Defaults().Assets.HTTPTimeoutMs) * time.Millisecond
	}
	return time.Duration(a.HTTPTimeoutMs) * time.Millisecond
}

// ResolvedCachePath returns CachePath or the default under the user cache dir.
func (a AssetsConfig) ResolvedCachePath() (string, error) {
	if strings.TrimSpace(a.CachePath) != "" {
		return a.CachePath, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "garmentcanvas", "assets.sqlite"), nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans are copied so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer

	setStr(&dst.Canvas.Preset, src.Canvas.Preset)
	setFloat(&dst.Canvas.Scale, src.Canvas.Scale)
	setStr(&dst.Canvas.Background, src.Canvas.Background)

	setFloat(&dst.Editor.HandleSize, src.Editor.HandleSize)
	setFloat(&dst.Editor.MinSize, src.Editor.MinSize)
	setFloat(&dst.Editor.CopyOffsetX, src.Editor.CopyOffsetX)
	setFloat(&dst.Editor.CopyOffsetY, src.Editor.CopyOffsetY)
	setFloat(&dst.Editor.NudgeStep, src.Editor.NudgeStep)
	setFloat(&dst.Editor.ResizeStep, src.Editor.ResizeStep)

	if src.Assets.HTTPTimeoutMs != 0 {
		dst.Assets.HTTPTimeoutMs = src.Assets.HTTPTimeoutMs
	}
	if src.Assets.MaxImageBytes != 0 {
		dst.Assets.MaxImageBytes = src.Assets.MaxImageBytes
	}
	if src.Assets.CacheMaxBytes != 0 {
		dst.Assets.CacheMaxBytes = src.Assets.CacheMaxBytes
	}
	setStr(&dst.Assets.CachePath, src.Assets.CachePath)
	setStr(&dst.Assets.FontDir, src.Assets.FontDir)
	if src.Assets.AllowedHosts != nil {
		dst.Assets.AllowedHosts = src.Assets.AllowedHosts
	}

	if strings.TrimSpace(src.Export.Format) != "" {
		dst.Export.Format = strings.ToLower(strings.TrimSpace(src.Export.Format))
	}
	setStr(&dst.Export.FileName, src.Export.FileName)
	setStr(&dst.Export.S3Bucket, src.Export.S3Bucket)
	setStr(&dst.Export.S3Region, src.Export.S3Region)
	setStr(&dst.Export.S3Prefix, src.Export.S3Prefix)

	setStr(&dst.Server.Addr, src.Server.Addr)
	if src.Server.CORSOrigins != nil {
		dst.Server.CORSOrigins = src.Server.CORSOrigins
	}
	if src.Server.MaxBodyKB != 0 {
		dst.Server.MaxBodyKB = src.Server.MaxBodyKB
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	if v := env(EnvCanvasPreset); v != "" {
		cfg.Canvas.Preset = v
	}
	if v := env(EnvCanvasScale); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Canvas.Scale = f
		}
	}
	if v := env(EnvAssetTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Assets.HTTPTimeoutMs = n
		}
	}
	if v := env(EnvAssetCache); v != "" {
		cfg.Assets.CachePath = v
	}
	if v := env(EnvAllowedHosts); v != "" {
		var hosts []string
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		cfg.Assets.AllowedHosts = hosts
	}
	if v := env(EnvFontDir); v != "" {
		cfg.Assets.FontDir = v
	}
	if v := env(EnvS3Bucket); v != "" {
		cfg.Export.S3Bucket = v
	}
	if v := env(EnvS3Region); v != "" {
		cfg.Export.S3Region = v
	}
	if v := env(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := env(EnvEnableServer); v != "" {
		cfg.General.EnableServer = envBool(v)
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"canvas.preset":            EnvCanvasPreset,
	"canvas.scale":             EnvCanvasScale,
	"assets.http_timeout_ms":   EnvAssetTimeoutMs,
	"assets.cache_path":        EnvAssetCache,
	"assets.allowed_hosts":     EnvAllowedHosts,
	"assets.font_dir":          EnvFontDir,
	"export.s3_bucket":         EnvS3Bucket,
	"export.s3_region":         EnvS3Region,
	"server.addr":              EnvServerAddr,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.enable_server":    EnvEnableServer,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	if env, ok := overrideKeys[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}
