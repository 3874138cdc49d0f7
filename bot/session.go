package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"menu-telegram/models"
	"menu-telegram/services"
	"menu-telegram/state"
	"menu-telegram/workflow"
)

// session is one logged in owner chat. It owns the view-state store and the
// screen controllers, and mirrors the store into two chat messages: the
// screen and, below it, the current alert.
type session struct {
	api     Sender
	chatID  int64
	userID  int64
	owner   services.Owner
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	store   *state.Store
	expirer *state.Expirer
	confirm *chatConfirmer
	deps    workflow.Deps
	list    *workflow.List
	unsub   func()
	dirty   chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	form     *workflow.Form
	detail   *workflow.Detail
	awaiting formField

	// Owned by the render loop.
	activated bool
	navSeq    uint64
	screenID  int
	screenKey string
	alertMsg  int
	alertID   uint64
}

func (b *Bot) newSession(ctx context.Context, chatID, userID int64, owner services.Owner) *session {
	log := b.log.With("chat_id", chatID, "business_id", owner.BusinessID)
	ctx, cancel := context.WithCancel(ctx)

	s := &session{
		api:    b.api,
		chatID: chatID,
		userID: userID,
		owner:  owner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		store:  state.New(),
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	var menus workflow.MenuService = b.menusFor(owner.BusinessID)
	if b.activity != nil {
		menus = recordingMenus{
			MenuService: menus,
			activity:    b.activity,
			businessID:  owner.BusinessID,
			userID:      userID,
			names:       s.menuName,
			log:         log,
		}
	}
	s.confirm = newChatConfirmer(b.api, chatID, userID, b.ui.ConfirmTimeout, log)
	s.deps = workflow.Deps{
		Store:   s.store,
		Menus:   menus,
		Confirm: s.confirm,
		Share:   b.share,
		Log:     log,
		Notify:  s.poke,
	}
	s.list = workflow.NewList(s.deps)
	s.unsub = s.store.Subscribe(func(state.Snapshot) { s.poke() })
	s.expirer = state.NewExpirer(s.store, b.ui.AlertTTL, nil)

	go s.loop()
	s.poke()
	return s
}

// close stops the render loop and waits for running controller calls.
func (s *session) close() {
	s.cancel()
	s.expirer.Stop()
	s.unsub()
	<-s.done
	s.wg.Wait()
}

// ownedBy reports whether u is the owner who opened the session.
func (s *session) ownedBy(u *tgbotapi.User) bool {
	return u != nil && u.ID == s.userID
}

func (s *session) poke() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
			s.render()
		}
	}
}

// run calls fn on its own goroutine so slow requests never block updates.
func (s *session) run(name string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := fn(s.ctx)
		switch {
		case err == nil:
		case errors.Is(err, workflow.ErrNotConfirmed),
			errors.Is(err, workflow.ErrBusy),
			errors.Is(err, workflow.ErrValidation),
			errors.Is(err, context.Canceled):
			s.log.Debug(name, "err", err)
		default:
			// The controller already put an alert on screen.
			s.log.Info(name, "err", err)
		}
	}()
}

func (s *session) render() {
	snap := s.store.Snapshot()
	fresh := !s.activated || snap.NavSeq != s.navSeq
	if fresh {
		s.activated = true
		s.navSeq = snap.NavSeq
		s.activate(snap.View)
	}
	s.showScreen(s.screenFor(snap), fresh)
	s.showAlert(snap.Alert)
}

// activate binds the controller of a newly entered view and starts its load.
func (s *session) activate(v state.View) {
	switch v := v.(type) {
	case state.ListView:
		s.setControllers(nil, nil, fieldNone)
		s.run("load menus", s.list.Load)
	case state.CreateView:
		f := workflow.NewCreateForm(s.deps)
		s.setControllers(f, nil, fieldName)
		s.run("open create form", f.Open)
	case state.EditView:
		f := workflow.NewEditForm(s.deps, v.MenuID)
		s.setControllers(f, nil, fieldNone)
		s.run("open edit form", f.Open)
	case state.DetailView:
		d := workflow.NewDetail(s.deps, v.MenuID)
		s.setControllers(nil, d, fieldNone)
		s.run("open menu", d.Open)
	default:
		s.setControllers(nil, nil, fieldNone)
		s.log.Error("unknown view", "view", fmt.Sprintf("%T", v))
	}
}

func (s *session) screenFor(snap state.Snapshot) screen {
	switch snap.View.(type) {
	case state.CreateView, state.EditView:
		f, awaiting := s.currentForm()
		if f == nil {
			return screen{text: "⏳ Loading…"}
		}
		return renderForm(f, awaiting)
	case state.DetailView:
		d := s.currentDetail()
		if d == nil {
			return screen{text: "⏳ Loading…"}
		}
		return renderDetail(d)
	case state.ListView:
		return renderList(snap, s.list.IsDeleting)
	default:
		s.log.Error("no screen for view", "view", fmt.Sprintf("%T", snap.View))
		return screen{text: "⚠️ Unknown screen.", kb: [][]tgbotapi.InlineKeyboardButton{
			row(mustButton("« Back to list", actList)),
		}}
	}
}

// showScreen sends the screen as a new message when the view changed and
// edits the existing message otherwise.
func (s *session) showScreen(scr screen, fresh bool) {
	key := scr.key()
	if !fresh && s.screenID != 0 && key == s.screenKey {
		return
	}
	if !fresh && s.screenID != 0 {
		var edit tgbotapi.EditMessageTextConfig
		if mk := scr.markup(); mk != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(s.chatID, s.screenID, scr.text, *mk)
		} else {
			edit = tgbotapi.NewEditMessageText(s.chatID, s.screenID, scr.text)
		}
		_, err := s.api.Request(edit)
		if err == nil {
			s.screenKey = key
			return
		}
		s.log.Warn("edit screen", "err", err)
	}

	if s.screenID != 0 {
		s.deleteMessage(s.screenID)
	}
	// A new screen goes below the old alert, so the alert is re-sent too.
	if s.alertMsg != 0 {
		s.deleteMessage(s.alertMsg)
		s.alertMsg, s.alertID = 0, 0
	}
	msg := tgbotapi.NewMessage(s.chatID, scr.text)
	if mk := scr.markup(); mk != nil {
		msg.ReplyMarkup = *mk
	}
	sent, err := s.api.Send(msg)
	if err != nil {
		s.log.Error("send screen", "err", err)
		s.screenID, s.screenKey = 0, ""
		return
	}
	s.screenID, s.screenKey = sent.MessageID, key
}

func (s *session) showAlert(a *state.Alert) {
	if a == nil {
		if s.alertMsg != 0 {
			s.deleteMessage(s.alertMsg)
			s.alertMsg, s.alertID = 0, 0
		}
		return
	}
	if a.ID == s.alertID && s.alertMsg != 0 {
		return
	}
	if s.alertMsg != 0 {
		s.deleteMessage(s.alertMsg)
	}
	scr := renderAlert(*a)
	msg := tgbotapi.NewMessage(s.chatID, scr.text)
	msg.ReplyMarkup = *scr.markup()
	sent, err := s.api.Send(msg)
	if err != nil {
		s.log.Error("send alert", "err", err)
		s.alertMsg, s.alertID = 0, 0
		return
	}
	s.alertMsg, s.alertID = sent.MessageID, a.ID
}

func (s *session) deleteMessage(id int) {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(s.chatID, id)); err != nil {
		s.log.Debug("delete message", "message_id", id, "err", err)
	}
}

func (s *session) setControllers(f *workflow.Form, d *workflow.Detail, awaiting formField) {
	s.mu.Lock()
	s.form, s.detail, s.awaiting = f, d, awaiting
	s.mu.Unlock()
}

func (s *session) currentForm() (*workflow.Form, formField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form, s.awaiting
}

func (s *session) currentDetail() *workflow.Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

func (s *session) await(field formField) {
	s.mu.Lock()
	if s.form == nil {
		s.mu.Unlock()
		return
	}
	s.awaiting = field
	s.mu.Unlock()
	s.poke()
}

// input feeds a text message into the field the form is waiting for. It
// reports whether the text was consumed.
func (s *session) input(text string) bool {
	s.mu.Lock()
	f, field := s.form, s.awaiting
	if f == nil || field == fieldNone {
		s.mu.Unlock()
		return false
	}
	next := fieldNone
	if field == fieldName && !f.IsEdit() && f.Values().Description == "" {
		next = fieldDescription
	}
	s.awaiting = next
	s.mu.Unlock()

	switch field {
	case fieldName:
		f.SetName(text)
	case fieldDescription:
		f.SetDescription(text)
	}
	s.poke()
	return true
}

func (s *session) menuByID(id string) (models.Menu, bool) {
	for _, m := range s.store.Menus() {
		if m.ID == id {
			return m, true
		}
	}
	return models.Menu{}, false
}

// menuName returns the name of a menu in the list cache or on the detail
// screen.
func (s *session) menuName(id string) string {
	if m, ok := s.menuByID(id); ok {
		return m.Name
	}
	if m := s.store.Snapshot().SelectedMenu; m != nil && m.ID == id {
		return m.Name
	}
	return ""
}
