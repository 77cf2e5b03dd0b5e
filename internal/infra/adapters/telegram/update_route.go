package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mpesa-commerce-bot/internal/domain/model"
)

// normalizeUpdate maps a Telegram update onto a chat event. kind labels the update for
// metrics; ok is false for updates the flow does not consume.
func normalizeUpdate(up tgbotapi.Update) (ev model.Event, kind string, ok bool) {
	if q := up.CallbackQuery; q != nil {
		var chatID int64
		switch {
		case q.Message != nil && q.Message.Chat != nil:
			chatID = q.Message.Chat.ID
		case q.From != nil:
			chatID = q.From.ID
		}
		if chatID == 0 || q.Data == "" {
			return model.Event{}, "callback", false
		}
		return model.ButtonEvent(chatID, q.Data), "callback", true
	}

	m := up.Message
	if m == nil || m.Chat == nil {
		return model.Event{}, "other", false
	}
	chatID := m.Chat.ID

	switch {
	case m.IsCommand() && m.Command() == "start":
		return model.SessionStartEvent(chatID), "command", true
	case len(m.Photo) > 0:
		// Sizes are ascending; forward the largest.
		p := m.Photo[len(m.Photo)-1]
		return model.FileEvent(chatID, model.FileRef{ID: p.FileID, Kind: model.FilePhoto}), "photo", true
	case m.Document != nil:
		return model.FileEvent(chatID, model.FileRef{
			ID:   m.Document.FileID,
			Kind: model.FileDocument,
			Name: m.Document.FileName,
		}), "document", true
	case m.Text != "":
		if m.IsCommand() {
			return model.TextEvent(chatID, m.Text), "command", true
		}
		return model.TextEvent(chatID, m.Text), "text", true
	}
	return model.Event{}, "other", false
}
