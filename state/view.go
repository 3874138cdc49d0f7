package state

import "fmt"

// View describes the active screen. The set of implementations is closed:
// ListView, CreateView, EditView and DetailView.
type View interface {
	fmt.Stringer
	isView()
}

// ListView shows every menu of the business.
type ListView struct{}

// CreateView shows an empty menu form.
type CreateView struct{}

// EditView shows the form for an existing menu.
type EditView struct {
	MenuID string
}

// DetailView shows a single menu with its share code.
type DetailView struct {
	MenuID string
}

func (ListView) isView()   {}
func (CreateView) isView() {}
func (EditView) isView()   {}
func (DetailView) isView() {}

func (ListView) String() string     { return "list" }
func (CreateView) String() string   { return "create" }
func (v EditView) String() string   { return "edit:" + v.MenuID }
func (v DetailView) String() string { return "detail:" + v.MenuID }

// ViewMenuID returns the menu a view is bound to, if any.
func ViewMenuID(v View) (string, bool) {
	switch v := v.(type) {
	case EditView:
		return v.MenuID, true
	case DetailView:
		return v.MenuID, true
	case ListView, CreateView:
		return "", false
	default:
		panic(fmt.Sprintf("state: unknown view %T", v))
	}
}
