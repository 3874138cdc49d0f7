package workflow

import (
	"context"
	"fmt"
	"sync"

	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/state"
)

// List controls the menu list screen.
type List struct {
	deps  Deps
	loads generation

	mu       sync.Mutex
	deleting map[string]bool
}

// NewList returns the list controller of a session.
func NewList(d Deps) *List {
	return &List{deps: d, deleting: make(map[string]bool)}
}

// Load fetches every menu and replaces the cache. A failed fetch keeps the
// cached menus and raises an error alert.
func (l *List) Load(ctx context.Context) error {
	s := l.deps.Store
	t := l.loads.begin(s)
	s.SetLoading(true)

	menus, err := l.deps.Menus.List(ctx)

	// Only the newest load owns the loading flag and the cache.
	if !l.loads.owns(t) {
		return err
	}
	if err == nil {
		s.SetMenus(menus)
	}
	s.SetLoading(false)

	if err != nil {
		l.deps.logger().Warn("load menus", "err", err)
		s.ShowAlertAt(t.nav, state.AlertError, "Failed to load menus. Please try again.")
		return err
	}
	return nil
}

// IsDeleting reports whether a delete of id is in flight.
func (l *List) IsDeleting(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleting[id]
}

// Delete asks for confirmation and removes m. Other rows stay usable while
// the call is in flight.
func (l *List) Delete(ctx context.Context, m models.Menu) error {
	if l.IsDeleting(m.ID) {
		return ErrBusy
	}
	if err := confirm(ctx, l.deps.Confirm, deletePrompt(m.Name)); err != nil {
		return err
	}
	if !l.markDeleting(m.ID) {
		return ErrBusy
	}
	defer l.unmarkDeleting(m.ID)

	s := l.deps.Store
	nav := s.NavSeq()
	if err := l.deps.Menus.Delete(ctx, m.ID); err != nil {
		l.deps.logger().Warn("delete menu", "menu_id", m.ID, "err", err)
		s.ShowAlertAt(nav, state.AlertError, fmt.Sprintf(`Failed to delete "%s".`, m.Name))
		return err
	}

	// A list fetch started before the delete would bring the menu back.
	l.loads.invalidate()
	s.SetLoading(false)
	s.UpdateMenus(removeMenu(m.ID))
	s.ShowAlertAt(nav, state.AlertSuccess, fmt.Sprintf(`"%s" was deleted.`, m.Name))
	l.deps.logger().Info("menu deleted", "menu_id", m.ID)
	return nil
}

// Share returns the share link of a menu.
func (l *List) Share(id string) qr.Share {
	return l.deps.Share.Share(id)
}

func (l *List) markDeleting(id string) bool {
	l.mu.Lock()
	if l.deleting[id] {
		l.mu.Unlock()
		return false
	}
	l.deleting[id] = true
	l.mu.Unlock()
	l.deps.notify()
	return true
}

func (l *List) unmarkDeleting(id string) {
	l.mu.Lock()
	delete(l.deleting, id)
	l.mu.Unlock()
	l.deps.notify()
}
