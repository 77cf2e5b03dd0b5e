package repository

import (
	"context"
	"time"

	"mpesa-commerce-bot/internal/domain/model"
)

// PendingIndex maps provider transaction ids back to conversations.
type PendingIndex interface {
	// Put fails with domain.ErrAlreadyExists when the id already maps to another conversation.
	Put(ctx context.Context, p model.PendingPayment) error
	// Get looks up an entry without removing it.
	Get(ctx context.Context, txID string) (model.PendingPayment, bool, error)
	// Take looks up and removes the entry in one step.
	Take(ctx context.Context, txID string) (model.PendingPayment, bool, error)
	Remove(ctx context.Context, txID string) error
	OlderThan(ctx context.Context, cutoff time.Time) ([]model.PendingPayment, error)
	Len(ctx context.Context) (int, error)
}
