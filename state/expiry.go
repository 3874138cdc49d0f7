package state

import (
	"sync"
	"time"
)

// DefaultAlertTTL is how long an alert stays visible when nothing else
// clears it.
const DefaultAlertTTL = 4 * time.Second

// Expirer clears alerts after a fixed delay. It watches a store and
// schedules one timer per alert; the timer only clears the alert it was
// scheduled for, so a replaced alert gets its own full TTL.
type Expirer struct {
	store    *Store
	ttl      time.Duration
	onExpire func(Alert)

	mu          sync.Mutex
	lastVersion uint64
	alertID     uint64
	timer       *time.Timer
	stopped     bool
	unsubscribe func()
}

// NewExpirer starts expiring alerts of store after ttl. onExpire, if not
// nil, is called after the expirer cleared an alert.
func NewExpirer(store *Store, ttl time.Duration, onExpire func(Alert)) *Expirer {
	if ttl <= 0 {
		ttl = DefaultAlertTTL
	}
	e := &Expirer{store: store, ttl: ttl, onExpire: onExpire}
	e.unsubscribe = store.Subscribe(e.observe)
	e.observe(store.Snapshot())
	return e
}

func (e *Expirer) observe(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || (snap.Version != 0 && snap.Version <= e.lastVersion) {
		return
	}
	e.lastVersion = snap.Version

	if snap.Alert == nil {
		e.stopTimerLocked()
		e.alertID = 0
		return
	}
	if snap.Alert.ID == e.alertID {
		return
	}

	e.stopTimerLocked()
	alert := *snap.Alert
	e.alertID = alert.ID
	e.timer = time.AfterFunc(e.ttl, func() {
		if !e.store.ClearAlertIf(alert.ID) {
			return
		}
		if e.onExpire != nil {
			e.onExpire(alert)
		}
	})
}

// Stop cancels the pending timer and detaches from the store.
func (e *Expirer) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.stopTimerLocked()
	e.mu.Unlock()
	e.unsubscribe()
}

func (e *Expirer) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
