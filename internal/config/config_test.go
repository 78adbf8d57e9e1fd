/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

type memStore struct{ m map[string]string }

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}

func (s *memStore) Delete(service, key string) error {
	if _, ok := s.m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(s.m, service+"/"+key)
	return nil
}

func withMemStore(t *testing.T) *memStore {
	t.Helper()
	ms := newMemStore()
	prev := SetTokenStore(ms)
	t.Cleanup(func() { SetTokenStore(prev) })
	return ms
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	d := Defaults()
	if cfg.Canvas.Preset != "A4" || cfg.Canvas.Scale != 3 {
		t.Fatalf("canvas defaults: %+v", cfg.Canvas)
	}
	if cfg.Editor != d.Editor {
		t.Fatalf("editor defaults: %+v", cfg.Editor)
	}
	if cfg.Export.FileName != "design.png" {
		t.Fatalf("file name: %q", cfg.Export.FileName)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
canvas:
  preset: A3
editor:
  nudge_step: 5
assets:
  allowed_hosts: [cdn.example.com]
export:
  format: PDF
logging:
  level: DEBUG
general:
  telemetry_opt_in: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Canvas.Preset != "A3" || cfg.Canvas.Scale != 3 {
		t.Errorf("canvas: %+v", cfg.Canvas)
	}
	if cfg.Editor.NudgeStep != 5 || cfg.Editor.ResizeStep != 3.78 {
		t.Errorf("editor: %+v", cfg.Editor)
	}
	if len(cfg.Assets.AllowedHosts) != 1 || cfg.Assets.AllowedHosts[0] != "cdn.example.com" {
		t.Errorf("hosts: %v", cfg.Assets.AllowedHosts)
	}
	if cfg.Export.Format != "pdf" || cfg.Logging.Level != "debug" {
		t.Errorf("normalization: %q %q", cfg.Export.Format, cfg.Logging.Level)
	}
	if !cfg.General.TelemetryOptIn {
		t.Error("telemetry opt-in should persist")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("canvas: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.Canvas.Scale = 0
	cfg.Export.Format = "gif"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "canvas.scale") || !strings.Contains(err.Error(), "export.format") {
		t.Fatalf("both problems should be reported: %v", err)
	}
	cfg = Defaults()
	cfg.Canvas.Scale = 10000
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "canvas.scale") {
		t.Fatalf("huge scale accepted: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCanvasPreset, "A3")
	t.Setenv(EnvCanvasScale, "2")
	t.Setenv(EnvAllowedHosts, " a.example, ,b.example ")
	t.Setenv(EnvEnableServer, "yes")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvAssetTimeoutMs, "not-a-number")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Canvas.Preset != "A3" || cfg.Canvas.Scale != 2 {
		t.Errorf("canvas: %+v", cfg.Canvas)
	}
	if got := cfg.Assets.AllowedHosts; len(got) != 2 || got[0] != "a.example" || got[1] != "b.example" {
		t.Errorf("hosts: %v", got)
	}
	if !cfg.General.EnableServer || cfg.Logging.Level != "warn" {
		t.Errorf("general/logging: %+v %+v", cfg.General, cfg.Logging)
	}
	if cfg.Assets.HTTPTimeoutMs != 15000 {
		t.Errorf("bad number should keep default, got %d", cfg.Assets.HTTPTimeoutMs)
	}
	if env, ok := EnvOverrideFor("canvas.scale"); !ok || env != EnvCanvasScale {
		t.Errorf("EnvOverrideFor: %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("export.s3_bucket"); ok {
		t.Error("unset env must not report an override")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ms := withMemStore(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	t.Setenv(EnvConfigPath, path)

	cfg := Defaults()
	cfg.Canvas.Background = ""
	cfg.Export.S3Bucket = "designs"
	if err := Save(cfg, "s3cr3t"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "s3cr3t") {
		t.Fatal("token must not be written to the config file")
	}
	if ms.m[keyringService+"/"+keyringToken] != "s3cr3t" {
		t.Fatal("token not stored in keyring")
	}

	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "s3cr3t" || got.Export.S3Bucket != "designs" {
		t.Fatalf("round trip: tok=%q cfg=%+v", tok, got.Export)
	}
}

func TestTokenEnvWinsAndDelete(t *testing.T) {
	withMemStore(t)
	if Token() != "" {
		t.Fatal("empty keyring should yield empty token")
	}
	if err := SetToken("kr"); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAssetToken, "env")
	if Token() != "env" {
		t.Fatal("env token should win")
	}
	if err := DeleteToken(); err != nil {
		t.Fatal(err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("deleting a missing token: %v", err)
	}
}

type failingStore struct{}

func (failingStore) Get(string, string) (string, error) { return "", errors.New("no keyring") }
func (failingStore) Set(string, string, string) error  { return errors.New("no keyring") }
func (failingStore) Delete(string, string) error       { return errors.New("no keyring") }

func TestTokenKeyringUnavailable(t *testing.T) {
	prev := SetTokenStore(failingStore{})
	t.Cleanup(func() { SetTokenStore(prev) })
	if Token() != "" {
		t.Fatal("unavailable keyring should yield empty token")
	}
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "c.yaml"))
	if err := Save(Defaults(), "x"); err == nil {
		t.Fatal("Save should surface keyring errors")
	}
}

func TestResolvedCachePath(t *testing.T) {
	a := AssetsConfig{CachePath: "/tmp/x.sqlite"}
	if p, _ := a.ResolvedCachePath(); p != "/tmp/x.sqlite" {
		t.Fatalf("explicit path: %q", p)
	}
	if d := (AssetsConfig{}).HTTPTimeout(); d.Milliseconds() != 15000 {
		t.Fatalf("default timeout: %v", d)
	}
}
