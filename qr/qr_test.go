package qr

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestShareURL(t *testing.T) {
	tests := []struct {
		base string
		id   string
		want string
	}{
		{"https://menus.example.com", "42", "https://menus.example.com/menus/42"},
		{"https://menus.example.com/", "42", "https://menus.example.com/menus/42"},
		{"http://localhost:3000", "a b/c", "http://localhost:3000/menus/a%20b%2Fc"},
	}
	for _, tt := range tests {
		b := Builder{PublicBaseURL: tt.base}
		if got := b.ShareURL(tt.id); got != tt.want {
			t.Errorf("ShareURL(%q) with base %q = %q, want %q", tt.id, tt.base, got, tt.want)
		}
	}
}

func TestImageURL(t *testing.T) {
	b := Builder{PublicBaseURL: "https://menus.example.com"}
	s := b.Share("7")

	u, err := url.Parse(s.ImageURL)
	if err != nil {
		t.Fatalf("parse %q: %v", s.ImageURL, err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != DefaultRendererURL {
		t.Errorf("renderer = %q, want %q", got, DefaultRendererURL)
	}
	if got := u.Query().Get("size"); got != "160x160" {
		t.Errorf("size = %q, want 160x160", got)
	}
	if got := u.Query().Get("data"); got != s.URL {
		t.Errorf("data = %q, want %q", got, s.URL)
	}

	big := b.ImageURL(s.URL, 400)
	u, _ = url.Parse(big)
	if got := u.Query().Get("size"); got != "400x400" {
		t.Errorf("size = %q, want 400x400", got)
	}
}

func TestImageURLCustomRenderer(t *testing.T) {
	b := Builder{RendererURL: "http://qr.local/render?format=png", Size: 100}
	u, err := url.Parse(b.ImageURL("x", 0))
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("format") != "png" || q.Get("size") != "100x100" || q.Get("data") != "x" {
		t.Errorf("query = %v", q)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Summer Lunch", "qr-summer-lunch.png"},
		{"  Brunch  ", "qr-brunch.png"},
		{"Kids' Menu #2", "qr-kids-menu-2.png"},
		{"Café", "qr-café.png"},
		{"", "qr-menu.png"},
		{"!!!", "qr-menu.png"},
	}
	for _, tt := range tests {
		if got := FileName(tt.in); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRendererCachesImages(t *testing.T) {
	png := []byte("\x89PNG fake image")
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer ts.Close()

	r, err := NewRenderer(ts.Client(), 1<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Close()

	imageURL := Builder{RendererURL: ts.URL}.ImageURL("https://menus.example.com/menus/1", 400)
	for i := 0; i < 3; i++ {
		got, err := r.PNG(context.Background(), imageURL)
		if err != nil {
			t.Fatalf("PNG: %v", err)
		}
		if !bytes.Equal(got, png) {
			t.Errorf("PNG = %q, want %q", got, png)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("renderer hit %d times, want 1", n)
	}
}

func TestRendererError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	r, err := NewRenderer(ts.Client(), 0, 0)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Close()

	if _, err := r.PNG(context.Background(), ts.URL+"/?data=x"); err == nil {
		t.Error("PNG succeeded on 503")
	}
}

func TestRendererRejectsOversizedImage(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{'x'}, maxImageBytes+1))
	}))
	defer ts.Close()

	r, err := NewRenderer(ts.Client(), 8<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Close()

	for i := 0; i < 2; i++ {
		if data, err := r.PNG(context.Background(), ts.URL+"/?data=big"); err == nil {
			t.Fatalf("PNG returned %d bytes, want error", len(data))
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("renderer hit %d times, want 2 (oversized image cached)", n)
	}
}

func TestNewRendererSmallCache(t *testing.T) {
	tests := []struct {
		name string
		cost int64
	}{
		{"tiny", 1},
		{"under one code", 500},
		{"default", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRenderer(nil, tt.cost, 0)
			if err != nil {
				t.Fatalf("NewRenderer(%d): %v", tt.cost, err)
			}
			r.Close()
		})
	}
}
