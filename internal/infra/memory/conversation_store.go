package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mpesa-commerce-bot/internal/domain"
	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/domain/ports/repository"
)

// Ensure the adapter implements the port interface.
var _ repository.ConversationStore = (*ConversationStore)(nil)

// ConversationStore keeps records for the lifetime of the process. Reads and writes
// go through copies so callers never share a record.
type ConversationStore struct {
	mu    sync.RWMutex
	store map[int64]*model.Conversation
	locks *keyedLock
	now   func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		store: make(map[int64]*model.Conversation),
		locks: newKeyedLock(),
		now:   time.Now,
	}
}

func (s *ConversationStore) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

// Save stamps UpdatedAt and stores a copy.
func (s *ConversationStore) Save(ctx context.Context, c *model.Conversation) error {
	if c == nil || c.State == nil {
		return domain.ErrInvalidArgument
	}
	cp := c.Clone()
	cp.UpdatedAt = s.now()
	s.mu.Lock()
	s.store[c.ID] = cp
	s.mu.Unlock()
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	delete(s.store, id)
	s.mu.Unlock()
	return nil
}

func (s *ConversationStore) Lock(ctx context.Context, id int64) (func(), error) {
	return s.locks.Lock(ctx, id)
}

func (s *ConversationStore) ListStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, c := range s.store {
		if c.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Len is used by metrics and tests.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}
