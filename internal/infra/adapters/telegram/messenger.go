package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mpesa-commerce-bot/internal/domain/model"
)

// SendPrompt sends p with its choices as an inline keyboard and returns the message id.
func (r *RealTelegramBotAdapter) SendPrompt(ctx context.Context, chatID int64, p model.Prompt) (int, error) {
	// Support early cancellation
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, p.Text)
	if kb, ok := inlineKeyboard(p.Choices); ok {
		msg.ReplyMarkup = kb
	}
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditPrompt replaces the text and keyboard of an earlier message.
func (r *RealTelegramBotAdapter) EditPrompt(ctx context.Context, chatID int64, messageID int, p model.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if kb, ok := inlineKeyboard(p.Choices); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, p.Text, kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, p.Text)
	}
	_, err := r.bot.Send(edit)
	return err
}

// ForwardFile re-sends a file the buyer uploaded to destination, by file id.
func (r *RealTelegramBotAdapter) ForwardFile(ctx context.Context, chatID int64, file model.FileRef, destination, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := parseDestination(destination)
	if err != nil {
		return err
	}
	fileID := tgbotapi.FileID(file.ID)

	var c tgbotapi.Chattable
	switch file.Kind {
	case model.FilePhoto:
		photo := tgbotapi.NewPhoto(target.chatID, fileID)
		photo.ChannelUsername = target.username
		photo.Caption = caption
		c = photo
	default:
		doc := tgbotapi.NewDocument(target.chatID, fileID)
		doc.ChannelUsername = target.username
		doc.Caption = caption
		c = doc
	}
	_, err = r.bot.Send(c)
	return err
}

// Notify sends plain text to a chat id or @username destination.
func (r *RealTelegramBotAdapter) Notify(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := parseDestination(destination)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(target.chatID, text)
	msg.ChannelUsername = target.username
	_, err = r.bot.Send(msg)
	return err
}

type destination struct {
	chatID   int64
	username string
}

func parseDestination(s string) (destination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return destination{}, errors.New("empty destination")
	}
	if strings.HasPrefix(s, "@") {
		return destination{username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return destination{}, errors.New("destination must be a chat id or @username")
	}
	return destination{chatID: id}, nil
}

// inlineKeyboard builds the markup for choices. URL choices open a link, the rest send
// their action token as callback data.
func inlineKeyboard(rows [][]model.Choice) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			label := strings.TrimSpace(c.Label)
			if label == "" {
				label = "•"
			}
			switch {
			case c.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, c.URL))
			case c.Action != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, c.Action))
			}
		}
		if len(r) > 0 {
			kbRows = append(kbRows, r)
		}
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}
