/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI or desktop shell into a crash report
// file, an optional dump of the layer list, and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/telemetry"
	"garmentcanvas/internal/version"
)

// exitFn is swapped in tests so Recover does not end the process.
var exitFn = os.Exit

// Options tell Recover where to write and what to add to the report.
type Options struct {
	// Dir receives crash-<stamp>.log; empty uses the OS temp dir.
	Dir string
	// Dump, when set, returns a diagnostic snapshot of the open design that
	// is written next to the report as design-<stamp>.json.
	Dump func() ([]byte, error)
	// Uploader receives the report when telemetry is opted in; nil uses the
	// default telemetry client.
	Uploader interface{ UploadCrash([]byte) }
}

// Recover captures a panic, logs it with the stack, writes the report and
// exits with status 2.
//
// Usage: defer crash.Recover(crash.Options{...})
func Recover(opts Options) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(opts, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if opts.Dump != nil {
		if path, err := writeDump(opts, stampOf(reportPath)); err != nil {
			l.Error("design dump failed", slog.Any("err", err))
		} else {
			l.Info("design dump written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func reportDir(opts Options) string {
	if opts.Dir == "" {
		return os.TempDir()
	}
	_ = os.MkdirAll(opts.Dir, 0o755)
	return opts.Dir
}

func stampOf(reportPath string) string {
	return strings.TrimSuffix(strings.TrimPrefix(filepath.Base(reportPath), "crash-"), ".log")
}

func writeReport(opts Options, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(opts), fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "garmentcanvas crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}

	var up interface{ UploadCrash([]byte) } = opts.Uploader
	if up == nil {
		up = telemetry.Default()
	}
	up.UploadCrash(buf.Bytes())
	return path, nil
}

func writeDump(opts Options, stamp string) (string, error) {
	b, err := opts.Dump()
	if err != nil {
		return "", fmt.Errorf("snapshot design: %w", err)
	}
	path := filepath.Join(reportDir(opts), fmt.Sprintf("design-%s.json", stamp))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return path, fmt.Errorf("write design dump: %w", err)
	}
	return path, nil
}
