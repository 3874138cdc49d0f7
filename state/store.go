// Package state holds the view-state store shared by the screens of one
// owner session: the active view, the cached menus, the loading flag and the
// transient alert.
package state

import (
	"slices"
	"sync"

	"menu-telegram/models"
)

// AlertKind is the severity of an alert.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
)

// Alert is a transient notice. ID increases with every ShowAlert call and
// identifies one particular alert for expiry.
type Alert struct {
	ID      uint64
	Kind    AlertKind
	Message string
}

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	Version      uint64
	NavSeq       uint64
	View         View
	Menus        []models.Menu
	SelectedMenu *models.Menu
	Loading      bool
	Alert        *Alert
}

// Store is the single source of truth for one session. It performs no I/O
// and starts no timers; every method is a synchronous state change.
type Store struct {
	mu        sync.RWMutex
	version   uint64
	navSeq    uint64
	view      View
	menus     []models.Menu
	selected  *models.Menu
	loading   bool
	alert     *Alert
	alertSeq  uint64
	listeners map[int]func(Snapshot)
	nextID    int
}

// New returns a store showing the list view.
func New() *Store {
	return &Store{
		view:      ListView{},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to be called with a snapshot after every change.
// fn runs on the goroutine that made the change, outside the store lock; it
// may read the store but should not block. Snapshots can arrive out of order
// when several goroutines write concurrently; compare Version.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetMenus replaces the cached collection wholesale.
func (s *Store) SetMenus(menus []models.Menu) {
	s.update(func() bool {
		s.menus = slices.Clone(menus)
		return true
	})
}

// UpdateMenus replaces the cached collection with fn applied to it, as one
// atomic step.
func (s *Store) UpdateMenus(fn func([]models.Menu) []models.Menu) {
	s.update(func() bool {
		s.menus = fn(slices.Clone(s.menus))
		return true
	})
}

// SetSelectedMenu caches a single record for the detail screen. nil clears it.
func (s *Store) SetSelectedMenu(m *models.Menu) {
	s.update(func() bool {
		if m == nil {
			s.selected = nil
			return true
		}
		cp := *m
		s.selected = &cp
		return true
	})
}

// Navigate replaces the active view and clears the alert in the same
// critical section. A nil view is treated as ListView.
func (s *Store) Navigate(v View) {
	if v == nil {
		v = ListView{}
	}
	s.update(func() bool {
		s.view = v
		s.alert = nil
		s.navSeq++
		return true
	})
}

// NavigateFrom navigates like Navigate, but only if no navigation happened
// since seq was read from NavSeq. It returns the sequence after the call and
// whether the view changed.
func (s *Store) NavigateFrom(seq uint64, v View) (uint64, bool) {
	if v == nil {
		v = ListView{}
	}
	var ok bool
	var now uint64
	s.update(func() bool {
		if s.navSeq != seq {
			now = s.navSeq
			return false
		}
		s.view = v
		s.alert = nil
		s.navSeq++
		now, ok = s.navSeq, true
		return true
	})
	return now, ok
}

// SetLoading sets the list-fetch-in-progress flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func() bool {
		if s.loading == loading {
			return false
		}
		s.loading = loading
		return true
	})
}

// ShowAlert replaces any existing alert and returns the new one.
func (s *Store) ShowAlert(kind AlertKind, message string) Alert {
	var a Alert
	s.update(func() bool {
		s.alertSeq++
		a = Alert{ID: s.alertSeq, Kind: kind, Message: message}
		s.alert = &a
		return true
	})
	return a
}

// ShowAlertAt shows an alert only while the navigation sequence is still
// seq, so a late result cannot raise an alert over a screen it does not
// belong to.
func (s *Store) ShowAlertAt(seq uint64, kind AlertKind, message string) (Alert, bool) {
	var a Alert
	var ok bool
	s.update(func() bool {
		if s.navSeq != seq {
			return false
		}
		s.alertSeq++
		a = Alert{ID: s.alertSeq, Kind: kind, Message: message}
		s.alert = &a
		ok = true
		return true
	})
	return a, ok
}

// ClearAlert removes the alert, if any.
func (s *Store) ClearAlert() {
	s.update(func() bool {
		if s.alert == nil {
			return false
		}
		s.alert = nil
		return true
	})
}

// ClearAlertIf removes the alert only if it is still the alert with the
// given id. It reports whether an alert was removed.
func (s *Store) ClearAlertIf(id uint64) bool {
	var cleared bool
	s.update(func() bool {
		if s.alert == nil || s.alert.ID != id {
			return false
		}
		s.alert = nil
		cleared = true
		return true
	})
	return cleared
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// View returns the active view.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// NavSeq returns the number of Navigate calls so far. Workflows capture it to
// detect that the user has moved on while a request was in flight.
func (s *Store) NavSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.navSeq
}

// Menus returns a copy of the cached collection.
func (s *Store) Menus() []models.Menu {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.menus)
}

// Loading reports whether a list fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Alert returns the active alert.
func (s *Store) Alert() (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.alert == nil {
		return Alert{}, false
	}
	return *s.alert, true
}

// update runs fn under the write lock and, when fn reports a change,
// notifies listeners with the resulting snapshot.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version: s.version,
		NavSeq:  s.navSeq,
		View:    s.view,
		Menus:   slices.Clone(s.menus),
		Loading: s.loading,
	}
	if s.selected != nil {
		cp := *s.selected
		snap.SelectedMenu = &cp
	}
	if s.alert != nil {
		a := *s.alert
		snap.Alert = &a
	}
	return snap
}
