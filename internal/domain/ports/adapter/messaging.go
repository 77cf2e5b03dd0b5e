package adapter

import (
	"context"

	"mpesa-commerce-bot/internal/domain/model"
)

// Messenger is the outbound port of the chat transport.
// chatID is the conversation id; destination may be a numeric chat id or an @channel name.
type Messenger interface {
	// SendPrompt delivers a prompt and returns a reference that EditPrompt can update.
	SendPrompt(ctx context.Context, chatID int64, p model.Prompt) (messageID int, err error)
	// EditPrompt replaces the text and choices of a message sent earlier.
	EditPrompt(ctx context.Context, chatID int64, messageID int, p model.Prompt) error
	// ForwardFile re-sends a file the buyer uploaded to a support destination.
	ForwardFile(ctx context.Context, chatID int64, file model.FileRef, destination, caption string) error
	// Notify sends a plain message to a support destination.
	Notify(ctx context.Context, destination, text string) error
}
