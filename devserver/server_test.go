package devserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"menu-telegram/models"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var n int
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDs(func() string {
			n++
			return "m" + string(rune('0'+n))
		}),
	)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func request(t *testing.T, method, url, business, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if business != "" {
		req.Header.Set("X-Business-ID", business)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerRequiresBusinessHeader(t *testing.T) {
	_, ts := newTestServer(t)
	resp := request(t, http.MethodGet, ts.URL+"/menus", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServerCRUD(t *testing.T) {
	s, ts := newTestServer(t)

	resp := request(t, http.MethodPost, ts.URL+"/menus", "biz", `{"name":"  Lunch ","description":"Midday","is_active":true}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created models.Menu
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != "m1" || created.Name != "Lunch" || created.BusinessID != "biz" || !created.IsActive {
		t.Errorf("created = %+v", created)
	}

	resp = request(t, http.MethodPut, ts.URL+"/menus/m1", "biz", `{"name":"Brunch","is_active":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	var updated models.Menu
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Name != "Brunch" || updated.IsActive {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("updated_at %v not after created_at %v", updated.UpdatedAt, updated.CreatedAt)
	}

	if got := s.Menus("other"); len(got) != 0 {
		t.Errorf("menus leaked to another business: %+v", got)
	}

	resp = request(t, http.MethodDelete, ts.URL+"/menus/m1", "biz", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = request(t, http.MethodGet, ts.URL+"/menus/m1", "biz", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestServerRejectsEmptyName(t *testing.T) {
	s, ts := newTestServer(t)
	resp := request(t, http.MethodPost, ts.URL+"/menus", "biz", `{"name":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if got := s.Menus("biz"); len(got) != 0 {
		t.Errorf("menus = %+v, want none", got)
	}
}

func TestServerListKeepsOrder(t *testing.T) {
	s, ts := newTestServer(t)
	s.Seed("biz", models.Menu{ID: "a", Name: "A"}, models.Menu{ID: "b", Name: "B"})
	request(t, http.MethodPost, ts.URL+"/menus", "biz", `{"name":"C"}`)

	resp := request(t, http.MethodGet, ts.URL+"/menus", "biz", "")
	var menus []models.Menu
	if err := json.NewDecoder(resp.Body).Decode(&menus); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var names []string
	for _, m := range menus {
		names = append(names, m.Name)
	}
	if strings.Join(names, ",") != "A,B,C" {
		t.Errorf("names = %v", names)
	}
}

func TestServerHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp := request(t, http.MethodGet, ts.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
