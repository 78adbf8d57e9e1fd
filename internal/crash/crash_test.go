/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type uploads struct{ n int }

func (u *uploads) UploadCrash([]byte) { u.n++ }

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	up := &uploads{}
	path, err := writeReport(Options{Uploader: up}, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "garmentcanvas crash report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
	if up.n != 1 {
		t.Fatalf("report should be handed to the uploader")
	}
}

func TestRecoverWritesReportAndDump(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	func() {
		defer Recover(Options{
			Dir:      filepath.Join(dir, "crash"),
			Dump:     func() ([]byte, error) { return []byte(`{"layers":[]}`), nil },
			Uploader: &uploads{},
		})
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "crash"))
	if err != nil {
		t.Fatal(err)
	}
	var report, dump bool
	for _, e := range entries {
		report = report || (strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".log"))
		dump = dump || (strings.HasPrefix(e.Name(), "design-") && strings.HasSuffix(e.Name(), ".json"))
	}
	if !report || !dump {
		t.Fatalf("report=%v dump=%v entries=%v", report, dump, entries)
	}
}

func TestDumpErrorIsReported(t *testing.T) {
	_, err := writeDump(Options{Dir: t.TempDir(), Dump: func() ([]byte, error) { return nil, errors.New("nope") }}, "x")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	oldExit := exitFn
	exitFn = func(int) { t.Fatalf("exit must not be called") }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(Options{})
	}()
}
