package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/state"
	"menu-telegram/workflow"
)

// screen is one rendered chat message.
type screen struct {
	text string
	kb   [][]tgbotapi.InlineKeyboardButton
}

func (s screen) markup() *tgbotapi.InlineKeyboardMarkup {
	if len(s.kb) == 0 {
		return nil
	}
	m := tgbotapi.NewInlineKeyboardMarkup(s.kb...)
	return &m
}

// key identifies the content so unchanged screens are not re-sent.
func (s screen) key() string {
	var sb strings.Builder
	sb.WriteString(s.text)
	for _, r := range s.kb {
		sb.WriteByte('\n')
		for _, b := range r {
			sb.WriteString(b.Text)
			if b.CallbackData != nil {
				sb.WriteString("|" + *b.CallbackData)
			}
			sb.WriteByte(';')
		}
	}
	return sb.String()
}

func button(text, action string, arg ...string) (tgbotapi.InlineKeyboardButton, bool) {
	data := callbackData(action, arg...)
	if !fitsCallback(data) {
		return tgbotapi.InlineKeyboardButton{}, false
	}
	return tgbotapi.NewInlineKeyboardButtonData(text, data), true
}

func row(buttons ...tgbotapi.InlineKeyboardButton) []tgbotapi.InlineKeyboardButton {
	return buttons
}

func mustButton(text, action string) tgbotapi.InlineKeyboardButton {
	b, _ := button(text, action)
	return b
}

func statusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func countLine(n int) string {
	if n == 1 {
		return "1 menu total"
	}
	return fmt.Sprintf("%d menus total", n)
}

func renderList(snap state.Snapshot, deleting func(id string) bool) screen {
	if snap.Loading {
		return screen{text: "📋 Your Menus\n\n⏳ Loading menus…"}
	}

	if len(snap.Menus) == 0 {
		return screen{
			text: "📋 Your Menus\n" + countLine(0) + "\n\nNo menus yet\nCreate your first menu to get started.",
			kb: [][]tgbotapi.InlineKeyboardButton{
				row(mustButton("➕ Create Menu", actNew)),
				row(mustButton("🔄 Refresh", actRefresh)),
			},
		}
	}

	var sb strings.Builder
	sb.WriteString("📋 Your Menus\n")
	sb.WriteString(countLine(len(snap.Menus)))
	sb.WriteString("\n")

	var kb [][]tgbotapi.InlineKeyboardButton
	for _, m := range snap.Menus {
		fmt.Fprintf(&sb, "\n• %s — %s", m.Name, statusLabel(m.IsActive))
		if m.Description != "" {
			fmt.Fprintf(&sb, "\n  %s", m.Description)
		}

		open, ok := button("👁 "+m.Name, actOpen, m.ID)
		if !ok {
			// An id too long for callback data cannot be acted on from chat.
			continue
		}
		r := row(open)
		if deleting(m.ID) {
			r = append(r, mustButton("⏳ Deleting…", actRefresh))
		} else {
			edit, _ := button("✏️", actEdit, m.ID)
			del, _ := button("🗑", actDelete, m.ID)
			r = append(r, edit, del)
		}
		code, _ := button("🔳 QR", actQR, m.ID)
		kb = append(kb, append(r, code))
	}
	kb = append(kb, row(mustButton("➕ New Menu", actNew), mustButton("🔄 Refresh", actRefresh)))
	return screen{text: sb.String(), kb: kb}
}

// formField names the field a form is waiting for in the next text message.
type formField int

const (
	fieldNone formField = iota
	fieldName
	fieldDescription
)

func renderForm(f *workflow.Form, awaiting formField) screen {
	title := "➕ New Menu"
	if f.IsEdit() {
		title = "✏️ Edit Menu"
	}

	st := f.State()
	if st == workflow.FormIdle || st == workflow.FormLoadingMenu {
		if f.IsEdit() {
			return screen{text: title + "\n\n⏳ Loading menu…", kb: [][]tgbotapi.InlineKeyboardButton{
				row(mustButton("✖ Cancel", actCancel)),
			}}
		}
	}

	v := f.Values()
	errs := f.Errors()

	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	name := v.Name
	if name == "" {
		name = "—"
	}
	fmt.Fprintf(&sb, "Name: %s\n", name)
	if msg, ok := errs["name"]; ok {
		fmt.Fprintf(&sb, "⚠️ %s\n", msg)
	}
	desc := v.Description
	if desc == "" {
		desc = "—"
	}
	fmt.Fprintf(&sb, "Description: %s\n", desc)
	if msg, ok := errs["description"]; ok {
		fmt.Fprintf(&sb, "⚠️ %s\n", msg)
	}
	fmt.Fprintf(&sb, "Status: %s\n", statusLabel(v.IsActive))

	switch awaiting {
	case fieldName:
		sb.WriteString("\n✍️ Send the menu name.")
	case fieldDescription:
		sb.WriteString("\n✍️ Send a description, or /skip to leave it empty.")
	}

	if st == workflow.FormSubmitting {
		sb.WriteString("\n\n💾 Saving…")
		return screen{text: sb.String()}
	}

	toggle := "⏸ Set inactive"
	if !v.IsActive {
		toggle = "▶️ Set active"
	}
	save := "💾 Create Menu"
	if f.IsEdit() {
		save = "💾 Save Changes"
	}
	return screen{
		text: sb.String(),
		kb: [][]tgbotapi.InlineKeyboardButton{
			row(mustButton("✏️ Name", actName), mustButton("📝 Description", actDesc)),
			row(mustButton(toggle, actActive)),
			row(mustButton(save, actSave), mustButton("✖ Cancel", actCancel)),
		},
	}
}

func renderDetail(d *workflow.Detail) screen {
	m, ok := d.Menu()
	if !ok {
		return screen{text: "⏳ Loading menu…", kb: [][]tgbotapi.InlineKeyboardButton{
			row(mustButton("« Back to list", actList)),
		}}
	}
	share := d.Share()

	var sb strings.Builder
	fmt.Fprintf(&sb, "🍽 %s\nStatus: %s\n", m.Name, statusLabel(m.IsActive))
	if m.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", m.Description)
	}
	fmt.Fprintf(&sb, "\n🔗 %s\n", share.URL)
	writeTimestamps(&sb, m)

	if d.IsDeleting() {
		sb.WriteString("\n🗑 Deleting…")
		return screen{text: sb.String()}
	}
	return screen{
		text: sb.String(),
		kb: [][]tgbotapi.InlineKeyboardButton{
			row(mustButton("✏️ Edit", actEdit), mustButton("🗑 Delete", actDDelete)),
			row(mustButton("🔳 QR code", actQR), mustButton("⬇️ Download QR", actDL)),
			row(mustButton("« Back to list", actList)),
		},
	}
}

func writeTimestamps(sb *strings.Builder, m models.Menu) {
	const layout = "2006-01-02 15:04"
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(sb, "Created: %s\n", m.CreatedAt.Format(layout))
	}
	if !m.UpdatedAt.IsZero() {
		fmt.Fprintf(sb, "Updated: %s\n", m.UpdatedAt.Format(layout))
	}
}

func renderAlert(a state.Alert) screen {
	icon := "✅"
	if a.Kind == state.AlertError {
		icon = "⚠️"
	}
	return screen{
		text: icon + " " + a.Message,
		kb:   [][]tgbotapi.InlineKeyboardButton{row(mustButton("✖ Dismiss", actDismiss))},
	}
}

func shareCaption(name string, s qr.Share) string {
	return fmt.Sprintf("🔳 %s\n%s", name, s.URL)
}
