package images

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"phimstream/utils"
)

const (
	maxImageBytes  = 20 << 20
	defaultQuality = 80
)

// Proxy fetches source images, optionally downscales and re-encodes them,
// and keeps the transcoded bytes in an on-disk cache so prefetched images
// are served without touching the origin again.
type Proxy struct {
	httpc    *http.Client
	cacheDir string
}

// NewProxy creates an image proxy caching under cacheDir. An empty cacheDir
// disables caching.
func NewProxy(httpc *http.Client, cacheDir string) *Proxy {
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	if cacheDir != "" {
		_ = os.MkdirAll(cacheDir, 0o755)
	}
	return &Proxy{httpc: httpc, cacheDir: cacheDir}
}

// Get returns the optimized bytes and content type for a source image URL.
// Only http(s) sources are fetched. Undecodable payloads are passed through
// unmodified rather than erroring.
func (p *Proxy) Get(ctx context.Context, rawURL string, opts Options) ([]byte, string, error) {
	if err := utils.ValidateImageURL(rawURL); err != nil {
		return nil, "", err
	}
	encoded, err := utils.EncodeURLWithSpaces(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("images: encode url: %w", err)
	}

	key := p.key(encoded, opts)
	if data, ok := p.cached(key); ok {
		return data, mimetype.Detect(data).String(), nil
	}

	src, err := p.fetch(ctx, encoded)
	if err != nil {
		return nil, "", err
	}

	out := transcode(src, opts)
	p.store(key, out)
	return out, mimetype.Detect(out).String(), nil
}

func (p *Proxy) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("images: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("images: fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("images: read %s: %w", url, err)
	}
	return data, nil
}

// transcode decodes src, downscales it to the requested bounds, and
// re-encodes as JPEG at the requested quality. Payloads that do not decode
// as an image are returned unchanged.
func transcode(src []byte, opts Options) []byte {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return src
	}

	if w, h := targetBounds(img.Bounds(), opts); w > 0 {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return src
	}
	return buf.Bytes()
}

// targetBounds returns the downscaled dimensions preserving aspect ratio, or
// 0,0 when no resize is needed. Images are never upscaled.
func targetBounds(b image.Rectangle, opts Options) (int, int) {
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return 0, 0
	}
	maxW, maxH := opts.Width, opts.Height
	if maxW <= 0 && maxH <= 0 {
		return 0, 0
	}
	if maxW <= 0 || (maxH > 0 && srcH*maxW > srcW*maxH) {
		if maxH >= srcH {
			return 0, 0
		}
		return srcW * maxH / srcH, maxH
	}
	if maxW >= srcW {
		return 0, 0
	}
	return maxW, srcH * maxW / srcW
}

func (p *Proxy) key(url string, opts Options) string {
	if p.cacheDir == "" {
		return ""
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d|%d", url, opts.Width, opts.Height, opts.Quality)))
	return hex.EncodeToString(sum[:])
}

func (p *Proxy) cached(key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(p.cacheDir, key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (p *Proxy) store(key string, data []byte) {
	if key == "" || len(data) == 0 {
		return
	}
	path := filepath.Join(p.cacheDir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}
