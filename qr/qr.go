// Package qr builds public share links for menus and fetches their QR code
// images from an external renderer.
package qr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultRendererURL is the public QR image endpoint.
const DefaultRendererURL = "https://api.qrserver.com/v1/create-qr-code/"

// DefaultSize is the edge length in pixels of the on-screen code.
const DefaultSize = 160

// Share is the share link of one menu together with its QR image URL.
type Share struct {
	URL      string
	ImageURL string
}

// Builder derives share links. It is a pure function of the menu id.
type Builder struct {
	PublicBaseURL string
	RendererURL   string
	Size          int
}

// ShareURL returns <public-base>/menus/<id>.
func (b Builder) ShareURL(id string) string {
	return strings.TrimRight(b.PublicBaseURL, "/") + "/menus/" + url.PathEscape(id)
}

// ImageURL returns the renderer URL producing a size x size code for target.
func (b Builder) ImageURL(target string, size int) string {
	if size <= 0 {
		size = b.size()
	}
	renderer := b.RendererURL
	if renderer == "" {
		renderer = DefaultRendererURL
	}
	q := url.Values{}
	q.Set("size", strconv.Itoa(size)+"x"+strconv.Itoa(size))
	q.Set("data", target)
	sep := "?"
	if strings.Contains(renderer, "?") {
		sep = "&"
	}
	return renderer + sep + q.Encode()
}

// Share returns the share link for id with an image URL at the default size.
func (b Builder) Share(id string) Share {
	target := b.ShareURL(id)
	return Share{URL: target, ImageURL: b.ImageURL(target, b.size())}
}

func (b Builder) size() int {
	if b.Size > 0 {
		return b.Size
	}
	return DefaultSize
}

// FileName returns the download name for the code of a menu called name,
// e.g. "Summer Lunch" -> "qr-summer-lunch.png".
func FileName(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			dash = false
			sb.WriteRune(r)
		default:
			dash = true
		}
	}
	if sb.Len() == 0 {
		return "qr-menu.png"
	}
	return "qr-" + sb.String() + ".png"
}

const maxImageBytes = 1 << 20

// Renderer downloads PNG codes and keeps recent ones in memory.
type Renderer struct {
	http  *http.Client
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// NewRenderer returns a renderer with a cache of at most maxCostBytes.
// A nil client uses http.DefaultClient.
func NewRenderer(hc *http.Client, maxCostBytes int64, ttl time.Duration) (*Renderer, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	if maxCostBytes <= 0 {
		maxCostBytes = 8 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/1000*10, 100), // codes are a few KB each
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("qr cache: %w", err)
	}
	return &Renderer{http: hc, cache: c, ttl: ttl}, nil
}

// PNG returns the image behind imageURL, from the cache when possible.
func (r *Renderer) PNG(ctx context.Context, imageURL string) ([]byte, error) {
	if data, ok := r.cache.Get(imageURL); ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("qr request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch qr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch qr: renderer answered %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read qr: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch qr: image larger than %d bytes", maxImageBytes)
	}

	if r.ttl > 0 {
		r.cache.SetWithTTL(imageURL, data, int64(len(data)), r.ttl)
	} else {
		r.cache.Set(imageURL, data, int64(len(data)))
	}
	r.cache.Wait()
	return data, nil
}

// Close releases the cache.
func (r *Renderer) Close() {
	r.cache.Close()
}
