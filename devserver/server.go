// Package devserver is an in-memory stand-in for the remote menu service.
// It serves the same routes so the bot can run locally without the real API.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"menu-telegram/models"
)

// Server keeps menus per business id in insertion order.
type Server struct {
	mu     sync.Mutex
	menus  map[string][]models.Menu
	now    func() time.Time
	newID  func() string
	log    *slog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithIDs replaces the uuid generator.
func WithIDs(newID func() string) Option {
	return func(s *Server) { s.newID = newID }
}

// New returns an empty server.
func New(log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		menus: make(map[string][]models.Menu),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/menus", func(r chi.Router) {
		r.Use(requireBusiness)
		r.Get("/", s.listMenus)
		r.Post("/", s.createMenu)
		r.Get("/{id}", s.getMenu)
		r.Put("/{id}", s.updateMenu)
		r.Delete("/{id}", s.deleteMenu)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Seed stores menus for a business as if they had been created.
func (s *Server) Seed(businessID string, menus ...models.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range menus {
		m.BusinessID = businessID
		s.menus[businessID] = append(s.menus[businessID], m)
	}
}

// Menus returns the stored menus of a business.
func (s *Server) Menus(businessID string) []models.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Menu(nil), s.menus[businessID]...)
}

func (s *Server) listMenus(w http.ResponseWriter, r *http.Request) {
	biz := businessID(r)
	s.mu.Lock()
	menus := append([]models.Menu{}, s.menus[biz]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, menus)
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	biz, id := businessID(r), chi.URLParam(r, "id")
	s.mu.Lock()
	i := s.indexLocked(biz, id)
	var m models.Menu
	if i >= 0 {
		m = s.menus[biz][i]
	}
	s.mu.Unlock()
	if i < 0 {
		writeError(w, http.StatusNotFound, "menu not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) createMenu(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	biz := businessID(r)
	now := s.now()
	m := models.Menu{
		ID:          s.newID(),
		BusinessID:  biz,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.menus[biz] = append(s.menus[biz], m)
	s.mu.Unlock()

	s.log.Info("devserver: menu created", "business_id", biz, "menu_id", m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateMenu(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	biz, id := businessID(r), chi.URLParam(r, "id")

	s.mu.Lock()
	i := s.indexLocked(biz, id)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "menu not found")
		return
	}
	m := &s.menus[biz][i]
	m.Name = in.Name
	m.Description = in.Description
	m.IsActive = in.IsActive
	if now := s.now(); now.After(m.UpdatedAt) {
		m.UpdatedAt = now
	}
	updated := *m
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteMenu(w http.ResponseWriter, r *http.Request) {
	biz, id := businessID(r), chi.URLParam(r, "id")

	s.mu.Lock()
	i := s.indexLocked(biz, id)
	if i >= 0 {
		s.menus[biz] = append(s.menus[biz][:i], s.menus[biz][i+1:]...)
	}
	s.mu.Unlock()

	if i < 0 {
		writeError(w, http.StatusNotFound, "menu not found")
		return
	}
	s.log.Info("devserver: menu deleted", "business_id", biz, "menu_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// indexLocked must be called with s.mu held.
func (s *Server) indexLocked(biz, id string) int {
	for i, m := range s.menus[biz] {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func decodeInput(w http.ResponseWriter, r *http.Request) (models.MenuInput, bool) {
	var in models.MenuInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return in, false
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "name is required")
		return in, false
	}
	return in, true
}

func requireBusiness(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("X-Business-ID")) == "" {
			writeError(w, http.StatusBadRequest, "X-Business-ID header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func businessID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Business-ID"))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,X-Business-ID,X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
