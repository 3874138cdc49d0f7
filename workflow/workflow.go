// Package workflow holds the screen controllers of the menu manager. Each
// controller drives one user task against the remote menu service and
// records the outcome in a state.Store.
package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/state"
)

// MenuService is the remote menu service as seen by the controllers.
type MenuService interface {
	List(ctx context.Context) ([]models.Menu, error)
	Get(ctx context.Context, id string) (models.Menu, error)
	Create(ctx context.Context, in models.MenuInput) (models.Menu, error)
	Update(ctx context.Context, id string, in models.MenuInput) (models.Menu, error)
	Delete(ctx context.Context, id string) error
}

// Confirmer asks the user a yes/no question. It blocks until the user
// answers or ctx ends.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

var (
	// ErrBusy is returned when the same operation is already in flight.
	ErrBusy = errors.New("workflow: operation already in progress")
	// ErrNotReady is returned when a screen is used before it finished loading.
	ErrNotReady = errors.New("workflow: screen not ready")
	// ErrValidation wraps a models.ValidationError from a form submit.
	ErrValidation = errors.New("workflow: invalid input")
	// ErrNotConfirmed is returned when the user declined a destructive action.
	ErrNotConfirmed = errors.New("workflow: not confirmed")
)

// Deps are the collaborators shared by every controller of a session.
type Deps struct {
	Store   *state.Store
	Menus   MenuService
	Confirm Confirmer
	Share   qr.Builder
	Log     *slog.Logger
	// Notify, if set, is called after a controller changed state that lives
	// outside the store (form fields, busy flags). It must not block.
	Notify func()
}

func (d Deps) notify() {
	if d.Notify != nil {
		d.Notify()
	}
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Log
}

// ticket records the controller generation and the store navigation
// sequence at the start of a call. A result is applied to the screen only
// while both are unchanged.
type ticket struct {
	gen uint64
	nav uint64
}

type generation struct {
	n atomic.Uint64
}

func (g *generation) begin(s *state.Store) ticket {
	return ticket{gen: g.n.Add(1), nav: s.NavSeq()}
}

func (g *generation) owns(t ticket) bool {
	return g.n.Load() == t.gen
}

func (g *generation) current(s *state.Store, t ticket) bool {
	return g.owns(t) && s.NavSeq() == t.nav
}

func (g *generation) invalidate() {
	g.n.Add(1)
}

// confirm asks c and maps a declined answer to ErrNotConfirmed. A nil
// Confirmer never confirms.
func confirm(ctx context.Context, c Confirmer, prompt string) error {
	if c == nil {
		return ErrNotConfirmed
	}
	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

func deletePrompt(name string) string {
	return `Delete "` + name + `"? This cannot be undone.`
}

func removeMenu(id string) func([]models.Menu) []models.Menu {
	return func(menus []models.Menu) []models.Menu {
		out := menus[:0]
		for _, m := range menus {
			if m.ID != id {
				out = append(out, m)
			}
		}
		return out
	}
}

// refreshAfterMutation refetches the list after a successful write and
// stores it. When the refetch fails, fallback is applied to the cache
// instead and false is returned.
func refreshAfterMutation(ctx context.Context, d Deps, fallback func([]models.Menu) []models.Menu) bool {
	menus, err := d.Menus.List(ctx)
	if err != nil {
		d.logger().Warn("refresh menus after change", "err", err)
		if fallback != nil {
			d.Store.UpdateMenus(fallback)
		}
		return false
	}
	d.Store.SetMenus(menus)
	return true
}
