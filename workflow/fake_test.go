package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/state"
)

// fakeMenus is an in-memory MenuService. Methods can be made to fail or to
// block on a gate until the test releases them.
type fakeMenus struct {
	mu    sync.Mutex
	menus []models.Menu
	seq   int
	calls map[string]int
	fail  map[string]error
	gates map[string]chan struct{}
}

func newFakeMenus(menus ...models.Menu) *fakeMenus {
	return &fakeMenus{
		menus: menus,
		calls: make(map[string]int),
		fail:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeMenus) failOn(method string, err error) {
	f.mu.Lock()
	f.fail[method] = err
	f.mu.Unlock()
}

// hold makes the next calls of method block until the returned func is
// called.
func (f *fakeMenus) hold(method string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, method)
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *fakeMenus) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeMenus) enter(method string) {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gates[method]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeMenus) err(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *fakeMenus) List(ctx context.Context) ([]models.Menu, error) {
	// The result is taken before blocking, like a response already on the wire.
	f.mu.Lock()
	menus := append([]models.Menu(nil), f.menus...)
	f.mu.Unlock()
	f.enter("List")
	if err := f.err("List"); err != nil {
		return nil, err
	}
	return menus, nil
}

func (f *fakeMenus) Get(ctx context.Context, id string) (models.Menu, error) {
	f.enter("Get")
	if err := f.err("Get"); err != nil {
		return models.Menu{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.menus {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Menu{}, fmt.Errorf("menu %s not found", id)
}

func (f *fakeMenus) Create(ctx context.Context, in models.MenuInput) (models.Menu, error) {
	f.enter("Create")
	if err := f.err("Create"); err != nil {
		return models.Menu{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Now()
	m := models.Menu{
		ID:          fmt.Sprintf("new-%d", f.seq),
		BusinessID:  "biz",
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.menus = append(f.menus, m)
	return m, nil
}

func (f *fakeMenus) Update(ctx context.Context, id string, in models.MenuInput) (models.Menu, error) {
	f.enter("Update")
	if err := f.err("Update"); err != nil {
		return models.Menu{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.menus {
		if f.menus[i].ID == id {
			f.menus[i].Name = in.Name
			f.menus[i].Description = in.Description
			f.menus[i].IsActive = in.IsActive
			f.menus[i].UpdatedAt = time.Now()
			return f.menus[i], nil
		}
	}
	return models.Menu{}, fmt.Errorf("menu %s not found", id)
}

func (f *fakeMenus) Delete(ctx context.Context, id string) error {
	f.enter("Delete")
	if err := f.err("Delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = removeMenu(id)(f.menus)
	return nil
}

type fakeConfirm struct {
	mu      sync.Mutex
	answer  bool
	prompts []string
}

func (c *fakeConfirm) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.answer, nil
}

func newDeps(svc *fakeMenus, yes bool) (Deps, *fakeConfirm) {
	c := &fakeConfirm{answer: yes}
	return Deps{
		Store:   state.New(),
		Menus:   svc,
		Confirm: c,
		Share:   qr.Builder{PublicBaseURL: "https://menus.example.com"},
	}, c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func wantAlert(t *testing.T, s *state.Store, kind state.AlertKind, msg string) {
	t.Helper()
	a, ok := s.Alert()
	if !ok {
		t.Fatalf("no alert, want %s %q", kind, msg)
	}
	if a.Kind != kind || a.Message != msg {
		t.Errorf("alert = %s %q, want %s %q", a.Kind, a.Message, kind, msg)
	}
}

func wantNoAlert(t *testing.T, s *state.Store) {
	t.Helper()
	if a, ok := s.Alert(); ok {
		t.Errorf("unexpected alert %s %q", a.Kind, a.Message)
	}
}

func wantView(t *testing.T, s *state.Store, want state.View) {
	t.Helper()
	if got := s.View(); got != want {
		t.Errorf("view = %v, want %v", got, want)
	}
}

func menuIDs(menus []models.Menu) []string {
	ids := make([]string, 0, len(menus))
	for _, m := range menus {
		ids = append(ids, m.ID)
	}
	return ids
}
