/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func sampleImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(2, 3, color.RGBA{R: 255, A: 255})
	return img
}

func TestPresets(t *testing.T) {
	p, err := PresetByName(" a3 ")
	if err != nil || p != A3 {
		t.Fatalf("PresetByName: %+v %v", p, err)
	}
	if _, err := PresetByName("letter"); err == nil {
		t.Fatal("unknown preset should fail")
	}
	c := A4.Canvas(DefaultScale)
	if math.Abs(c.W-794.0/3) > 1e-9 || math.Abs(c.H-1123.0/3) > 1e-9 {
		t.Fatalf("A4 canvas = %+v", c)
	}
	if A4.Canvas(0) != c {
		t.Fatal("zero scale should fall back to the default")
	}
}

func TestPNGRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, "PNG", sampleImage(), A4); err != nil {
		t.Fatal(err)
	}
	got, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := got.At(2, 3).RGBA(); r>>8 != 255 {
		t.Fatal("pixel lost")
	}
	if err := WritePNG(io.Discard, nil); err == nil {
		t.Fatal("nil image should fail")
	}
	if err := Encode(io.Discard, "svg", sampleImage(), A4); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleImage(), A3, PDFOptions{Title: "Shirt"}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
	}
	if ContentType("pdf") != "application/pdf" || ContentType("png") != "image/png" {
		t.Fatal("content types")
	}
}

func TestWriteFileByExtension(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "out", DefaultFileName)
	pdfPath := filepath.Join(dir, "out", "design.PDF")
	for _, p := range []string{pngPath, pdfPath} {
		if err := WriteFile(p, sampleImage(), A4); err != nil {
			t.Fatalf("WriteFile %s: %v", p, err)
		}
	}
	data, _ := os.ReadFile(pdfPath)
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("pdf extension should produce a pdf")
	}
	data, _ = os.ReadFile(pngPath)
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("png extension should produce a png")
	}
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3SinkUpload(t *testing.T) {
	fake := &fakeS3{}
	sink := &S3Sink{Client: fake, Bucket: "designs", Prefix: "exports"}
	key, err := sink.Upload(context.Background(), "../evil/shirt.png", "image/png", []byte("data"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, "exports/") || !strings.HasSuffix(key, "-shirt.png") {
		t.Errorf("key = %q", key)
	}
	if *fake.in.Bucket != "designs" || *fake.in.ContentType != "image/png" || string(fake.body) != "data" {
		t.Errorf("input = %+v body=%q", fake.in, fake.body)
	}

	fake.err = errors.New("denied")
	if _, err := sink.Upload(context.Background(), "", "image/png", nil); err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasSuffix(*fake.in.Key, "-"+DefaultFileName) {
		t.Errorf("empty name should use the default, key = %q", *fake.in.Key)
	}
}

func TestNewS3SinkRequiresBucket(t *testing.T) {
	if _, err := NewS3Sink(context.Background(), " ", "", ""); err == nil {
		t.Fatal("expected error")
	}
}
