package repository

import (
	"context"
	"time"

	"mpesa-commerce-bot/internal/domain/model"
)

// ConversationStore is the port for the per-buyer state-machine records.
type ConversationStore interface {
	// Get returns a copy of the record or domain.ErrNotFound.
	Get(ctx context.Context, id int64) (*model.Conversation, error)
	Save(ctx context.Context, c *model.Conversation) error
	Delete(ctx context.Context, id int64) error
	// Lock serializes units of work on one conversation. The returned func releases it.
	Lock(ctx context.Context, id int64) (unlock func(), err error)
	// ListStale returns ids of records last touched before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]int64, error)
}
