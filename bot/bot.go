// Package bot is the Telegram front end of the menu manager. Every owner
// chat gets a session that renders the menu screens as inline-keyboard
// messages and forwards button presses to the workflow controllers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"menu-telegram/config"
	"menu-telegram/qr"
	"menu-telegram/services"
	"menu-telegram/state"
	"menu-telegram/workflow"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Authenticator logs owners in. services.OwnerAuth and services.StaticAuth
// implement it.
type Authenticator interface {
	Login(ctx context.Context, tgUserID int64, password string) (services.Owner, error)
	Restore(ctx context.Context, tgUserID int64) (services.Owner, bool, error)
	Logout(ctx context.Context, tgUserID int64) error
}

// Deps are the collaborators of a Bot. Activity and Renderer are optional.
type Deps struct {
	Auth     Authenticator
	Menus    func(businessID string) workflow.MenuService
	Activity ActivityStore
	Renderer *qr.Renderer
	Log      *slog.Logger
}

const historyLimit = 10

type Bot struct {
	api          Sender
	auth         Authenticator
	menusFor     func(businessID string) workflow.MenuService
	activity     ActivityStore
	renderer     *qr.Renderer
	share        qr.Builder
	downloadSize int
	ui           config.UIConfig
	log          *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(api Sender, cfg *config.Config, d Deps) *Bot {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		api:      api,
		auth:     d.Auth,
		menusFor: d.Menus,
		activity: d.Activity,
		renderer: d.Renderer,
		share: qr.Builder{
			PublicBaseURL: cfg.Share.PublicBaseURL,
			RendererURL:   cfg.Share.RendererURL,
			Size:          cfg.Share.Size,
		},
		downloadSize: cfg.Share.DownloadSize,
		ui:           cfg.UI,
		log:          log,
		sessions:     make(map[int64]*session),
	}
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Log in / show menus"},
		tgbotapi.BotCommand{Command: "menus", Description: "Show your menus"},
		tgbotapi.BotCommand{Command: "new", Description: "Create a menu"},
		tgbotapi.BotCommand{Command: "history", Description: "Recent changes"},
		tgbotapi.BotCommand{Command: "logout", Description: "Log out"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Run handles updates until ctx ends or the channel is closed, then closes
// every session.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	if err := b.setBotCommands(); err != nil {
		b.log.Warn("set bot commands", "err", err)
	}
	defer b.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Close ends all sessions.
func (b *Bot) Close() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*session)
	b.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// HandleUpdate processes one update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	s := b.session(chatID)
	if s != nil && !s.ownedBy(msg.From) {
		s.log.Warn("message from another user", "tg_user_id", userID)
		b.send(chatID, "🔒 Not logged in. This chat is in use by another owner.")
		return
	}

	if text == "/start" {
		b.handleStart(ctx, chatID, userID, s)
		return
	}
	if s == nil {
		if text == "" || strings.HasPrefix(text, "/") {
			b.send(chatID, "🔒 Send your password to manage your menus.")
			return
		}
		b.handleLogin(ctx, msg, text)
		return
	}

	switch {
	case text == "/menus" || text == "/cancel":
		s.store.Navigate(state.ListView{})
	case text == "/new":
		s.store.Navigate(state.CreateView{})
	case text == "/skip":
		if !s.input("") {
			b.send(chatID, "Nothing to skip.")
		}
	case text == "/history":
		b.handleHistory(ctx, s)
	case text == "/logout":
		b.handleLogout(ctx, chatID, userID)
	case text != "" && s.input(text):
	default:
		b.send(chatID, "Use the buttons above, or /menus to show your menus.")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, s *session) {
	if s != nil {
		s.store.Navigate(state.ListView{})
		return
	}
	owner, ok, err := b.auth.Restore(ctx, userID)
	if err != nil {
		b.log.Warn("restore owner session", "tg_user_id", userID, "err", err)
	}
	if ok {
		b.openSession(ctx, chatID, userID, owner)
		return
	}
	b.send(chatID, "👋 Menu manager.\n🔒 Send your password to continue.")
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message, password string) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	// The password should not stay in the chat history.
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		b.log.Debug("delete password message", "chat_id", chatID, "err", err)
	}

	owner, err := b.auth.Login(ctx, userID, password)
	if err != nil {
		var te *services.ThrottledError
		switch {
		case errors.As(err, &te):
			b.send(chatID, fmt.Sprintf("⏳ Too many attempts. Try again in %s.", te.Wait.Round(time.Second)))
		case errors.Is(err, services.ErrInvalidPassword):
			b.send(chatID, "❌ Wrong password.")
		default:
			b.log.Error("owner login", "tg_user_id", userID, "err", err)
			b.send(chatID, "⚠️ Login is unavailable right now. Try again later.")
		}
		return
	}

	b.log.Info("owner logged in", "tg_user_id", userID, "business_id", owner.BusinessID)
	name := owner.Name
	if name == "" {
		name = owner.BusinessID
	}
	b.send(chatID, "✅ Logged in as "+name+".")
	b.openSession(ctx, chatID, userID, owner)
}

func (b *Bot) handleLogout(ctx context.Context, chatID, userID int64) {
	b.mu.Lock()
	s := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	if s != nil {
		s.close()
	}
	if err := b.auth.Logout(ctx, userID); err != nil {
		b.log.Warn("owner logout", "tg_user_id", userID, "err", err)
	}
	b.send(chatID, "👋 Logged out. Send your password to log in again.")
}

func (b *Bot) handleHistory(ctx context.Context, s *session) {
	if b.activity == nil {
		b.send(s.chatID, "History is not available.")
		return
	}
	items, err := b.activity.Recent(ctx, s.owner.BusinessID, historyLimit)
	if err != nil {
		s.log.Warn("load activity", "err", err)
		b.send(s.chatID, "⚠️ Failed to load history.")
		return
	}
	if len(items) == 0 {
		b.send(s.chatID, "🕘 No changes yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🕘 Recent changes\n")
	for _, a := range items {
		sb.WriteString("\n" + a.String())
	}
	b.send(s.chatID, sb.String())
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Debug("answer callback", "err", err)
	}
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	action, arg, ok := parseCallback(cq.Data)
	if !ok {
		return
	}
	s := b.session(chatID)
	if s == nil {
		b.send(chatID, "🔒 Session expired. Send your password to continue.")
		return
	}
	if !s.ownedBy(cq.From) {
		s.log.Warn("button press from another user", "action", action)
		return
	}

	switch action {
	case actYes, actNo:
		s.confirm.answer(arg, cq.From.ID, action == actYes)
	case actDismiss:
		s.store.ClearAlert()
	case actList, actCancel:
		s.store.Navigate(state.ListView{})
	case actRefresh:
		if _, onList := s.store.View().(state.ListView); onList {
			s.run("reload menus", s.list.Load)
		}
	case actNew:
		s.store.Navigate(state.CreateView{})
	case actOpen:
		s.store.Navigate(state.DetailView{MenuID: arg})
	case actEdit:
		if arg != "" {
			s.store.Navigate(state.EditView{MenuID: arg})
		} else if d := s.currentDetail(); d != nil {
			d.Edit()
		}
	case actDelete:
		m, found := s.menuByID(arg)
		if !found {
			return
		}
		s.run("delete menu", func(ctx context.Context) error { return s.list.Delete(ctx, m) })
	case actDDelete:
		if d := s.currentDetail(); d != nil {
			s.run("delete menu", d.Delete)
		}
	case actQR:
		s.run("send qr", func(ctx context.Context) error {
			b.handleQR(ctx, s, arg)
			return nil
		})
	case actDL:
		if d := s.currentDetail(); d != nil {
			s.run("send qr download", func(ctx context.Context) error {
				b.handleDownload(ctx, s, d)
				return nil
			})
		}
	case actName:
		s.await(fieldName)
	case actDesc:
		s.await(fieldDescription)
	case actActive:
		if f, _ := s.currentForm(); f != nil {
			f.SetActive(!f.Values().IsActive)
			s.poke()
		}
	case actSave:
		if f, _ := s.currentForm(); f != nil {
			s.await(fieldNone)
			s.run("submit menu", f.Submit)
		}
	}
}

// handleQR sends the on-screen QR code of a menu as a photo. An empty id
// means the menu of the current screen.
func (b *Bot) handleQR(ctx context.Context, s *session, id string) {
	if id == "" {
		viewID, ok := state.ViewMenuID(s.store.View())
		if !ok {
			return
		}
		id = viewID
	}
	name := s.menuName(id)

	share := b.share.Share(id)
	var file tgbotapi.RequestFileData = tgbotapi.FileURL(share.ImageURL)
	if b.renderer != nil {
		png, err := b.renderer.PNG(ctx, share.ImageURL)
		if err != nil {
			s.log.Warn("render qr", "menu_id", id, "err", err)
			s.store.ShowAlert(state.AlertError, "Failed to load the QR code.")
			return
		}
		file = tgbotapi.FileBytes{Name: qr.FileName(name), Bytes: png}
	}
	photo := tgbotapi.NewPhoto(s.chatID, file)
	photo.Caption = shareCaption(name, share)
	if _, err := b.api.Send(photo); err != nil {
		s.log.Warn("send qr", "menu_id", id, "err", err)
		s.store.ShowAlert(state.AlertError, "Failed to send the QR code.")
	}
}

// handleDownload sends a large QR code as a file named after the menu.
func (b *Bot) handleDownload(ctx context.Context, s *session, d *workflow.Detail) {
	m, ok := d.Menu()
	if !ok {
		return
	}
	share := d.Share()
	imageURL := b.share.ImageURL(share.URL, b.downloadSize)

	var file tgbotapi.RequestFileData = tgbotapi.FileURL(imageURL)
	if b.renderer != nil {
		png, err := b.renderer.PNG(ctx, imageURL)
		if err != nil {
			s.log.Warn("render qr download", "menu_id", m.ID, "err", err)
			s.store.ShowAlert(state.AlertError, "Failed to download the QR code.")
			return
		}
		file = tgbotapi.FileBytes{Name: qr.FileName(m.Name), Bytes: png}
	}
	doc := tgbotapi.NewDocument(s.chatID, file)
	doc.Caption = shareCaption(m.Name, share)
	if _, err := b.api.Send(doc); err != nil {
		s.log.Warn("send qr download", "menu_id", m.ID, "err", err)
		s.store.ShowAlert(state.AlertError, "Failed to download the QR code.")
	}
}

func (b *Bot) openSession(ctx context.Context, chatID, userID int64, owner services.Owner) {
	s := b.newSession(ctx, chatID, userID, owner)
	b.mu.Lock()
	old := b.sessions[chatID]
	b.sessions[chatID] = s
	b.mu.Unlock()
	if old != nil {
		old.close()
	}
}

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send message", "chat_id", chatID, "err", err)
	}
}
