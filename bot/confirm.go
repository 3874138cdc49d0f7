package bot

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultConfirmTimeout = time.Minute

// chatConfirmer asks yes/no questions with an inline keyboard in one chat.
// Answers arrive as callbacks and are routed back through answer. Only the
// owner's presses count.
type chatConfirmer struct {
	api     Sender
	chatID  int64
	owner   int64
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]chan bool
}

func newChatConfirmer(api Sender, chatID, owner int64, timeout time.Duration, log *slog.Logger) *chatConfirmer {
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	return &chatConfirmer{
		api:     api,
		chatID:  chatID,
		owner:   owner,
		timeout: timeout,
		log:     log,
		pending: make(map[string]chan bool),
	}
}

// Confirm sends prompt with Yes/No buttons and waits for the answer. No
// answer within the timeout counts as no.
func (c *chatConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	token, ch := c.register()
	defer c.unregister(token)

	msg := tgbotapi.NewMessage(c.chatID, "❓ "+prompt)
	yes, _ := button("✅ Yes", actYes, token)
	no, _ := button("✖ No", actNo, token)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row(yes, no))
	sent, err := c.api.Send(msg)
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case yes := <-ch:
		c.remove(sent.MessageID)
		return yes, nil
	case <-timer.C:
		edit := tgbotapi.NewEditMessageText(c.chatID, sent.MessageID, "❓ "+prompt+"\n\nCancelled.")
		if _, err := c.api.Request(edit); err != nil {
			c.log.Warn("edit expired confirmation", "chat_id", c.chatID, "err", err)
		}
		return false, nil
	case <-ctx.Done():
		c.remove(sent.MessageID)
		return false, ctx.Err()
	}
}

// answer delivers a button press by user from. It reports whether a question
// with that token was still waiting. Presses by anyone but the owner leave
// the question open.
func (c *chatConfirmer) answer(token string, from int64, yes bool) bool {
	if from != c.owner {
		c.log.Warn("confirmation answered by another user", "chat_id", c.chatID, "tg_user_id", from)
		return false
	}
	c.mu.Lock()
	ch, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- yes
	return true
}

func (c *chatConfirmer) register() (string, chan bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	token := strconv.FormatUint(c.seq, 10)
	ch := make(chan bool, 1)
	c.pending[token] = ch
	return token, ch
}

func (c *chatConfirmer) unregister(token string) {
	c.mu.Lock()
	delete(c.pending, token)
	c.mu.Unlock()
}

func (c *chatConfirmer) remove(messageID int) {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(c.chatID, messageID)); err != nil {
		c.log.Debug("delete confirmation", "chat_id", c.chatID, "err", err)
	}
}
