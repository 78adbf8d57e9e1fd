/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"garmentcanvas/internal/crash"
	"garmentcanvas/internal/editor"
	"garmentcanvas/internal/export"
	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/script"
	"garmentcanvas/internal/server"
	"garmentcanvas/internal/textlayout"
	"garmentcanvas/internal/ui"
	"garmentcanvas/internal/version"
)

func usage() {
	fmt.Println("GarmentCanvas: print design editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  garmentcanvas version|-v|--version              Show version")
	fmt.Println("  garmentcanvas presets                           List canvas presets as JSON")
	fmt.Println("  garmentcanvas schema                            Print the layer script JSON schema")
	fmt.Println("  garmentcanvas render [-o out] [-upload] <file>  Run a layer script and export the design")
	fmt.Println("  garmentcanvas serve [-addr host:port]           Serve the HTTP render API")
	fmt.Println("  garmentcanvas ui                                Launch desktop UI (build with -tags fyne)")
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	args := os.Args
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("GarmentCanvas")
		fmt.Println(version.String())
		return
	case "presets":
		exitOn(printJSON(export.Presets()))
		return
	case "schema":
		_, err := os.Stdout.Write(script.Schema())
		exitOn(err)
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wd, _ := os.Getwd()
	rt, err := setup(ctx, wd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer rt.close()
	l := rt.log
	l.Debug("start", slog.String("cmd", args[1]), slog.Int("args", len(args)))

	switch args[1] {
	case "render":
		err = cmdRender(ctx, rt, args[2:])
	case "serve":
		err = cmdServe(ctx, rt, args[2:])
	case "ui":
		err = cmdUI(ctx, rt)
	default:
		fmt.Println("Unknown command:", args[1])
		usage()
		rt.close()
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		l.Error(args[1]+" failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		rt.close()
		os.Exit(1)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func cmdRender(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	out := fs.String("o", rt.cfg.Export.FileName, "output file (.png or .pdf)")
	upload := fs.Bool("upload", false, "upload to the configured S3 bucket instead of writing a file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		usage()
		return errors.New("render requires exactly one script file")
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s, err := script.Parse(data)
	if err != nil {
		return err
	}
	base, err := rt.editorConfig()
	if err != nil {
		return err
	}
	cfg, err := s.EditorConfig(base)
	if err != nil {
		return err
	}

	// Image paths in the script are relative to the script itself.
	dec := rt.decoderFor(filepath.Dir(path), false)
	ed := editor.New(cfg,
		editor.WithDecoder(dec),
		editor.WithFonts(textlayout.NewOTProvider(rt.fonts)),
		editor.WithTracker(rt.tracker),
	)
	defer ed.Close()
	defer crash.Recover(crash.Options{Dir: crashDir(), Dump: ed.Snapshot})

	res, err := script.Run(ctx, ed, s)
	if err != nil {
		return err
	}
	rt.log.Info("script applied", slog.Int("layers", len(res.Layers)), slog.Int("aliases", len(res.Aliases)))

	preset := presetOf(cfg)
	img := ed.ExportImage()
	if !*upload {
		if err := export.WriteFile(*out, img, preset); err != nil {
			return err
		}
		rt.tracker.Event("export", map[string]any{"format": export.FormatFromPath(*out), "target": "file"})
		fmt.Println("Wrote", *out)
		return nil
	}

	sink, err := export.NewS3Sink(ctx, rt.cfg.Export.S3Bucket, rt.cfg.Export.S3Region, rt.cfg.Export.S3Prefix)
	if err != nil {
		return err
	}
	format := export.FormatFromPath(*out)
	buf, err := encode(format, img, preset)
	if err != nil {
		return err
	}
	key, err := sink.Upload(ctx, filepath.Base(*out), export.ContentType(format), buf)
	if err != nil {
		return err
	}
	rt.tracker.Event("export", map[string]any{"format": format, "target": "s3"})
	fmt.Printf("Uploaded s3://%s/%s\n", sink.Bucket, key)
	return nil
}

func cmdServe(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", rt.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	srv, err := rt.httpServer(ctx, *addr)
	if err != nil {
		return err
	}
	return listen(ctx, rt, srv)
}

func cmdUI(ctx context.Context, rt *runtime) error {
	cfg, err := rt.editorConfig()
	if err != nil {
		return err
	}
	if rt.cfg.General.EnableServer {
		srv, err := rt.httpServer(ctx, rt.cfg.Server.Addr)
		if err != nil {
			return err
		}
		go func() {
			if err := listen(ctx, rt, srv); err != nil {
				rt.log.Error("local server stopped", slog.Any("err", err))
			}
		}()
	}
	families := append(append([]string(nil), ui.DefaultFamilies...), rt.fonts.Families()...)
	return ui.Run(ui.Options{
		Editor:     cfg,
		Decoder:    rt.decoder,
		Fonts:      textlayout.NewOTProvider(rt.fonts),
		Families:   families,
		Tracker:    rt.tracker,
		Crash:      crash.Options{Dir: crashDir(), Uploader: rt.tracker},
		ExportName: rt.cfg.Export.FileName,
	})
}

func (rt *runtime) httpServer(ctx context.Context, addr string) (*http.Server, error) {
	cfg, err := rt.editorConfig()
	if err != nil {
		return nil, err
	}
	// Requests only reach remote, data: and inline sources.
	opts := server.Options{
		Editor:       cfg,
		Decoder:      rt.decoderFor("", true),
		Fonts:        func() textlayout.Provider { return textlayout.NewOTProvider(rt.fonts) },
		CORSOrigins:  rt.cfg.Server.CORSOrigins,
		MaxBodyBytes: int64(rt.cfg.Server.MaxBodyKB) << 10,
		Tracker:      rt.tracker,
	}
	if rt.cfg.Export.S3Bucket != "" {
		sink, err := export.NewS3Sink(ctx, rt.cfg.Export.S3Bucket, rt.cfg.Export.S3Region, rt.cfg.Export.S3Prefix)
		if err != nil {
			rt.log.Warn("s3 upload disabled", slog.Any("err", err))
		} else {
			opts.Uploader = sink
		}
	}
	return &http.Server{
		Addr:              addr,
		Handler:           server.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return applog.ContextWith(ctx, slog.String("addr", addr)) },
	}, nil
}

func listen(ctx context.Context, rt *runtime, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		rt.log.Info("listening", slog.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.log.Info("shutting down", slog.String("addr", srv.Addr))
		return srv.Shutdown(shutdown)
	}
}
