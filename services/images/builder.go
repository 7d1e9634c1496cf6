package images

import (
	"net/url"
	"strconv"
	"strings"
)

// ProxyPath is the endpoint the builder wraps every image through. The name
// matches the upstream image proxy so existing clients keep working.
const ProxyPath = "/image.php"

// Options carry resize/quality hints for the proxied image. Zero values are
// omitted from the generated URL.
type Options struct {
	Width   int
	Height  int
	Quality int
}

// Builder deterministically maps a raw image path or URL to a proxied,
// format-optimized URL. It performs no I/O, never fails, and is idempotent:
// re-applying it to its own output returns the input unchanged.
type Builder struct {
	origin      string
	placeholder string
}

// NewBuilder creates a builder that rebases relative paths onto origin and
// maps absent input to the placeholder path.
func NewBuilder(origin, placeholder string) *Builder {
	return &Builder{
		origin:      strings.TrimRight(origin, "/"),
		placeholder: placeholder,
	}
}

// URL builds the display URL for raw with default options.
func (b *Builder) URL(raw string) string {
	return b.Build(raw, Options{})
}

// Build builds the display URL for raw with explicit resize/quality hints.
func (b *Builder) Build(raw string, opts Options) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return b.placeholder
	}
	// Placeholder and in-memory URLs pass through untouched.
	if raw == b.placeholder {
		return raw
	}
	if strings.HasPrefix(raw, "blob:") || strings.HasPrefix(raw, "data:") {
		return raw
	}
	// Already proxied; wrapping again would double-encode.
	if strings.HasPrefix(raw, ProxyPath+"?") {
		return raw
	}

	full := raw
	if !strings.HasPrefix(raw, "http") {
		full = b.origin + "/" + strings.TrimLeft(raw, "/")
	}

	q := url.Values{}
	q.Set("url", full)
	if opts.Quality > 0 {
		q.Set("q", strconv.Itoa(clampQuality(opts.Quality)))
	}
	if opts.Width > 0 {
		q.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("h", strconv.Itoa(opts.Height))
	}
	return ProxyPath + "?" + q.Encode()
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
