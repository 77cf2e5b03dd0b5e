package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mpesa-commerce-bot/internal/domain"
	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/domain/ports/repository"
)

var _ repository.PendingIndex = (*PendingIndex)(nil)

// PendingIndex is written by chat events and read by provider callbacks,
// so every access goes through the mutex.
type PendingIndex struct {
	mu      sync.Mutex
	entries map[string]model.PendingPayment
}

func NewPendingIndex() *PendingIndex {
	return &PendingIndex{entries: make(map[string]model.PendingPayment)}
}

func (p *PendingIndex) Put(ctx context.Context, e model.PendingPayment) error {
	if e.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction id", domain.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.entries[e.TransactionID]; ok && cur.ConversationID != e.ConversationID {
		return fmt.Errorf("%w: transaction %s belongs to conversation %d", domain.ErrAlreadyExists, e.TransactionID, cur.ConversationID)
	}
	p.entries[e.TransactionID] = e
	return nil
}

func (p *PendingIndex) Get(ctx context.Context, txID string) (model.PendingPayment, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[txID]
	return e, ok, nil
}

func (p *PendingIndex) Take(ctx context.Context, txID string) (model.PendingPayment, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[txID]
	if ok {
		delete(p.entries, txID)
	}
	return e, ok, nil
}

func (p *PendingIndex) Remove(ctx context.Context, txID string) error {
	p.mu.Lock()
	delete(p.entries, txID)
	p.mu.Unlock()
	return nil
}

// OlderThan returns entries created before cutoff, oldest first.
func (p *PendingIndex) OlderThan(ctx context.Context, cutoff time.Time) ([]model.PendingPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.PendingPayment
	for _, e := range p.entries {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *PendingIndex) Len(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries), nil
}
