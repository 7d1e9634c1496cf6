package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProxyTranscodesToJPEG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(t, 40, 60))
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), "")
	data, contentType, err := p.Get(context.Background(), srv.URL+"/poster.png", Options{Quality: 70})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("expected jpeg output, got %q", contentType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output not decodable: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 60 {
		t.Fatalf("unexpected dimensions %dx%d", cfg.Width, cfg.Height)
	}
}

func TestProxyDownscales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 400, 600))
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), "")
	data, _, err := p.Get(context.Background(), srv.URL+"/poster.png", Options{Width: 100})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 150 {
		t.Fatalf("expected 100x150, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestProxyNeverUpscales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 50, 50))
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), "")
	data, _, err := p.Get(context.Background(), srv.URL+"/small.png", Options{Width: 500})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cfg, _, _ := image.DecodeConfig(bytes.NewReader(data))
	if cfg.Width != 50 {
		t.Fatalf("image was upscaled to %d", cfg.Width)
	}
}

func TestProxyPassesThroughUndecodable(t *testing.T) {
	payload := []byte("not an image at all")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), "")
	data, _, err := p.Get(context.Background(), srv.URL+"/blob", Options{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("undecodable payload must pass through unchanged")
	}
}

func TestProxyRejectsNonHTTP(t *testing.T) {
	p := NewProxy(nil, "")
	for _, u := range []string{"file:///etc/passwd", "data:image/png,AAAA", ""} {
		if _, _, err := p.Get(context.Background(), u, Options{}); err == nil {
			t.Errorf("expected rejection for %q", u)
		}
	}
}

func TestProxyCacheHit(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(pngBytes(t, 10, 10))
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), t.TempDir())
	for i := 0; i < 2; i++ {
		if _, _, err := p.Get(context.Background(), srv.URL+"/cached.png", Options{}); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("second request must hit the cache, origin hits = %d", hits.Load())
	}
}

func TestProxyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewProxy(srv.Client(), "")
	_, _, err := p.Get(context.Background(), srv.URL+"/missing.jpg", Options{})
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status error, got %v", err)
	}
}
