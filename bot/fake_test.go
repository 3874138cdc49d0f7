package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"menu-telegram/config"
	"menu-telegram/devserver"
	"menu-telegram/menuapi"
	"menu-telegram/models"
	"menu-telegram/services"
	"menu-telegram/workflow"
)

const (
	testChat  int64 = 4242
	otherUser int64 = 999
)

// call is one request the bot made to Telegram.
type call struct {
	kind      string // message, edit, delete, callback, photo, document, other
	messageID int
	text      string
	buttons   []string // callback data
	fileName  string
}

func (c call) has(s string) bool { return strings.Contains(c.text, s) }

// fakeAPI records every Send and Request and hands out message ids.
type fakeAPI struct {
	mu    sync.Mutex
	seq   int
	calls []call
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec := record(c)
	if rec.kind == "message" || rec.kind == "photo" || rec.kind == "document" {
		rec.messageID = f.seq
	}
	f.calls = append(f.calls, rec)
	return tgbotapi.Message{MessageID: f.seq, Chat: &tgbotapi.Chat{ID: testChat}}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, record(c))
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func record(c tgbotapi.Chattable) call {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		out := call{kind: "message", text: v.Text}
		if mk, ok := v.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			out.buttons = buttonData(mk)
		}
		return out
	case tgbotapi.EditMessageTextConfig:
		out := call{kind: "edit", messageID: v.MessageID, text: v.Text}
		if v.ReplyMarkup != nil {
			out.buttons = buttonData(*v.ReplyMarkup)
		}
		return out
	case tgbotapi.DeleteMessageConfig:
		return call{kind: "delete", messageID: v.MessageID}
	case tgbotapi.CallbackConfig:
		return call{kind: "callback", text: v.Text}
	case tgbotapi.PhotoConfig:
		out := call{kind: "photo", text: v.Caption}
		if fb, ok := v.File.(tgbotapi.FileBytes); ok {
			out.fileName = fb.Name
		}
		return out
	case tgbotapi.DocumentConfig:
		out := call{kind: "document", text: v.Caption}
		if fb, ok := v.File.(tgbotapi.FileBytes); ok {
			out.fileName = fb.Name
		}
		return out
	default:
		return call{kind: "other"}
	}
}

func buttonData(mk tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, r := range mk.InlineKeyboard {
		for _, b := range r {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func (f *fakeAPI) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// find returns the first recorded call matching match.
func (f *fakeAPI) find(match func(call) bool) (call, bool) {
	for _, c := range f.snapshot() {
		if match(c) {
			return c, true
		}
	}
	return call{}, false
}

// waitCall waits for a call matching match.
func (f *fakeAPI) waitCall(t *testing.T, what string, match func(call) bool) call {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if c, ok := f.find(match); ok {
			return c
		}
		if time.Now().After(deadline) {
			var texts []string
			for _, c := range f.snapshot() {
				texts = append(texts, c.kind+": "+c.text)
			}
			t.Fatalf("timed out waiting for %s; calls:\n%s", what, strings.Join(texts, "\n"))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitText waits for a sent or edited message containing s.
func (f *fakeAPI) waitText(t *testing.T, s string) call {
	t.Helper()
	return f.waitCall(t, "text "+s, func(c call) bool {
		return (c.kind == "message" || c.kind == "edit") && c.has(s)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	bot *Bot
	api *fakeAPI
	srv *devserver.Server
	ctx context.Context
}

const testBusiness = "biz-1"

func newTestEnv(t *testing.T, activity ActivityStore, menus ...models.Menu) *testEnv {
	t.Helper()
	srv := devserver.New(discardLogger())
	srv.Seed(testBusiness, menus...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client := menuapi.New(ts.URL, testBusiness, menuapi.WithLogger(discardLogger()))
	cfg := config.Defaults()
	cfg.UI.AlertTTL = time.Minute
	cfg.UI.ConfirmTimeout = time.Minute

	api := &fakeAPI{}
	b := New(api, &cfg, Deps{
		Auth:     services.StaticAuth{Password: "secret", BusinessID: testBusiness},
		Menus:    func(biz string) workflow.MenuService { return client.ForBusiness(biz) },
		Activity: activity,
		Log:      discardLogger(),
	})
	t.Cleanup(b.Close)
	return &testEnv{bot: b, api: api, srv: srv, ctx: context.Background()}
}

func (e *testEnv) text(msgID int, text string) {
	e.textFrom(testChat, msgID, text)
}

// textFrom sends a message to the test chat as user.
func (e *testEnv) textFrom(user int64, msgID int, text string) {
	e.bot.HandleUpdate(e.ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      &tgbotapi.User{ID: user},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
	}})
}

func (e *testEnv) press(data string) {
	e.pressFrom(testChat, data)
}

// pressFrom presses a button in the test chat as user.
func (e *testEnv) pressFrom(user int64, data string) {
	e.bot.HandleUpdate(e.ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: user},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}})
}

// login logs in and waits until the list has been shown.
func (e *testEnv) login(t *testing.T, listText string) {
	t.Helper()
	e.text(10, "secret")
	e.api.waitText(t, listText)
}

// recordingActivity is an in-memory ActivityStore.
type recordingActivity struct {
	mu   sync.Mutex
	list []services.Activity
}

func (r *recordingActivity) Record(_ context.Context, a services.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, a)
	return nil
}

func (r *recordingActivity) Recent(_ context.Context, businessID string, limit int) ([]services.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []services.Activity
	for i := len(r.list) - 1; i >= 0 && len(out) < limit; i-- {
		if r.list[i].BusinessID == businessID {
			out = append(out, r.list[i])
		}
	}
	return out, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.list {
		out = append(out, a.Action+":"+a.MenuID)
	}
	return out
}
