package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"menu-telegram/models"
	"menu-telegram/state"
)

// FormState is the lifecycle stage of a Form.
type FormState int

const (
	FormIdle FormState = iota
	FormLoadingMenu
	FormReady
	FormSubmitting
)

func (s FormState) String() string {
	switch s {
	case FormIdle:
		return "idle"
	case FormLoadingMenu:
		return "loading"
	case FormReady:
		return "ready"
	case FormSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("FormState(%d)", int(s))
	}
}

// Form controls the create and edit screens.
type Form struct {
	deps   Deps
	menuID string
	gen    generation

	mu     sync.Mutex
	state  FormState
	values models.MenuInput
	errors models.ValidationError
}

// NewCreateForm returns a form for a new menu, pre-filled with defaults.
func NewCreateForm(d Deps) *Form {
	return &Form{deps: d, values: models.NewMenuInput()}
}

// NewEditForm returns a form for the menu with the given id.
func NewEditForm(d Deps, menuID string) *Form {
	return &Form{deps: d, menuID: menuID}
}

// IsEdit reports whether the form edits an existing menu.
func (f *Form) IsEdit() bool { return f.menuID != "" }

// MenuID returns the id of the edited menu, or "" for a create form.
func (f *Form) MenuID() string { return f.menuID }

// Open prepares the form. An edit form fetches its menu first; when that
// fails the user is sent back to the list.
func (f *Form) Open(ctx context.Context) error {
	if !f.IsEdit() {
		f.setState(FormReady)
		return nil
	}

	s := f.deps.Store
	t := f.gen.begin(s)
	f.setState(FormLoadingMenu)

	m, err := f.deps.Menus.Get(ctx, f.menuID)
	if !f.gen.current(s, t) {
		return err
	}
	if err != nil {
		f.deps.logger().Warn("load menu for editing", "menu_id", f.menuID, "err", err)
		f.setState(FormIdle)
		if nav, ok := s.NavigateFrom(t.nav, state.ListView{}); ok {
			s.ShowAlertAt(nav, state.AlertError, "Failed to load menu for editing.")
		}
		return err
	}

	f.mu.Lock()
	f.values = m.Input()
	f.errors = nil
	f.state = FormReady
	f.mu.Unlock()
	f.deps.notify()
	return nil
}

// State returns the lifecycle stage.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Values returns the current field values.
func (f *Form) Values() models.MenuInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Errors returns the field errors of the last submit, keyed by field name.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.errors)
}

// SetName sets the name field and drops its error.
func (f *Form) SetName(name string) {
	f.mu.Lock()
	f.values.Name = name
	delete(f.errors, "name")
	f.mu.Unlock()
}

// SetDescription sets the description field.
func (f *Form) SetDescription(desc string) {
	f.mu.Lock()
	f.values.Description = desc
	f.mu.Unlock()
}

// SetActive sets the active flag.
func (f *Form) SetActive(active bool) {
	f.mu.Lock()
	f.values.IsActive = active
	f.mu.Unlock()
}

// Submit validates the fields and saves the menu. Validation errors are
// kept per field and never reach the service. On success the list is
// refreshed and shown; on failure the form stays open with its values.
func (f *Form) Submit(ctx context.Context) error {
	in, err := f.beginSubmit()
	f.deps.notify()
	if err != nil {
		return err
	}

	s := f.deps.Store
	t := f.gen.begin(s)
	log := f.deps.logger()

	var saved models.Menu
	if f.IsEdit() {
		saved, err = f.deps.Menus.Update(ctx, f.menuID, in)
	} else {
		saved, err = f.deps.Menus.Create(ctx, in)
	}
	if err != nil {
		log.Warn("save menu", "menu_id", f.menuID, "err", err)
		f.endSubmit()
		msg := "Failed to create menu."
		if f.IsEdit() {
			msg = "Failed to update menu."
		}
		if f.gen.current(s, t) {
			s.ShowAlertAt(t.nav, state.AlertError, msg)
		}
		return err
	}
	log.Info("menu saved", "menu_id", saved.ID, "edit", f.IsEdit())

	refreshed := refreshAfterMutation(ctx, f.deps, nil)
	f.endSubmit()
	if !f.gen.current(s, t) {
		return nil
	}

	name := saved.Name
	if name == "" {
		name = in.Name
	}
	nav, ok := s.NavigateFrom(t.nav, state.ListView{})
	if !ok {
		return nil
	}
	if !refreshed {
		s.ShowAlertAt(nav, state.AlertError, fmt.Sprintf(`"%s" was saved, but the menu list could not be refreshed.`, name))
		return nil
	}
	verb := "created"
	if f.IsEdit() {
		verb = "updated"
	}
	s.ShowAlertAt(nav, state.AlertSuccess, fmt.Sprintf(`"%s" %s successfully.`, name, verb))
	return nil
}

func (f *Form) beginSubmit() (models.MenuInput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case FormSubmitting:
		return models.MenuInput{}, ErrBusy
	case FormReady:
	default:
		return models.MenuInput{}, ErrNotReady
	}

	f.errors = nil
	in := f.values.Normalize()
	if err := in.Validate(); err != nil {
		var verr models.ValidationError
		if errors.As(err, &verr) {
			f.errors = verr
		}
		return models.MenuInput{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	f.state = FormSubmitting
	return in, nil
}

func (f *Form) endSubmit() {
	f.mu.Lock()
	if f.state == FormSubmitting {
		f.state = FormReady
	}
	f.mu.Unlock()
	f.deps.notify()
}

func (f *Form) setState(st FormState) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	f.deps.notify()
}
