package workflow

import (
	"context"
	"fmt"
	"sync"

	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/state"
)

// Detail controls the single menu screen.
type Detail struct {
	deps   Deps
	menuID string
	gen    generation

	mu       sync.Mutex
	menu     *models.Menu
	deleting bool
}

// NewDetail returns the detail controller for one menu.
func NewDetail(d Deps, menuID string) *Detail {
	return &Detail{deps: d, menuID: menuID}
}

// MenuID returns the id the screen is bound to.
func (d *Detail) MenuID() string { return d.menuID }

// Open fetches the menu. A failure sends the user back to the list.
func (d *Detail) Open(ctx context.Context) error {
	s := d.deps.Store
	t := d.gen.begin(s)

	m, err := d.deps.Menus.Get(ctx, d.menuID)
	if !d.gen.current(s, t) {
		return err
	}
	if err != nil {
		d.deps.logger().Warn("load menu details", "menu_id", d.menuID, "err", err)
		if nav, ok := s.NavigateFrom(t.nav, state.ListView{}); ok {
			s.ShowAlertAt(nav, state.AlertError, "Failed to load menu details.")
		}
		return err
	}

	d.mu.Lock()
	d.menu = &m
	d.mu.Unlock()
	s.SetSelectedMenu(&m)
	return nil
}

// Menu returns the loaded menu.
func (d *Detail) Menu() (models.Menu, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.menu == nil {
		return models.Menu{}, false
	}
	return *d.menu, true
}

// IsDeleting reports whether a delete is in flight.
func (d *Detail) IsDeleting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleting
}

// Edit switches to the edit form of the same menu.
func (d *Detail) Edit() {
	d.deps.Store.Navigate(state.EditView{MenuID: d.menuID})
}

// Delete asks for confirmation, deletes the menu, refreshes the list and
// returns to it.
func (d *Detail) Delete(ctx context.Context) error {
	m, ok := d.Menu()
	if !ok {
		return ErrNotReady
	}
	if d.IsDeleting() {
		return ErrBusy
	}
	if err := confirm(ctx, d.deps.Confirm, deletePrompt(m.Name)); err != nil {
		return err
	}
	if !d.setDeleting(true) {
		return ErrBusy
	}

	s := d.deps.Store
	t := d.gen.begin(s)
	if err := d.deps.Menus.Delete(ctx, m.ID); err != nil {
		d.deps.logger().Warn("delete menu", "menu_id", m.ID, "err", err)
		d.setDeleting(false)
		if d.gen.current(s, t) {
			s.ShowAlertAt(t.nav, state.AlertError, fmt.Sprintf(`Failed to delete "%s".`, m.Name))
		}
		return err
	}
	d.deps.logger().Info("menu deleted", "menu_id", m.ID)

	refreshed := refreshAfterMutation(ctx, d.deps, removeMenu(m.ID))
	s.SetSelectedMenu(nil)
	d.setDeleting(false)
	if !d.gen.current(s, t) {
		return nil
	}

	nav, ok := s.NavigateFrom(t.nav, state.ListView{})
	if !ok {
		return nil
	}
	if !refreshed {
		s.ShowAlertAt(nav, state.AlertError, fmt.Sprintf(`"%s" was deleted, but the menu list could not be refreshed.`, m.Name))
		return nil
	}
	s.ShowAlertAt(nav, state.AlertSuccess, fmt.Sprintf(`"%s" was deleted.`, m.Name))
	return nil
}

// Share returns the share link of the menu. It needs only the id.
func (d *Detail) Share() qr.Share {
	return d.deps.Share.Share(d.menuID)
}

// setDeleting sets the busy flag and reports whether it changed.
func (d *Detail) setDeleting(v bool) bool {
	d.mu.Lock()
	if d.deleting == v {
		d.mu.Unlock()
		return false
	}
	d.deleting = v
	d.mu.Unlock()
	d.deps.notify()
	return true
}
