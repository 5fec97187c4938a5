package storage

import (
	"context"
	"sync"
	"time"

	"chemvis/pkg/contracts/domain"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu sync.RWMutex
	h  *history
}

// Option customises a MemoryStore or FileStore
type Option func(*history)

// WithClock replaces the clock used for CreatedAt
func WithClock(now func() time.Time) Option {
	return func(h *history) {
		h.now = now
	}
}

// NewMemoryStore creates a new in-memory dataset history
func NewMemoryStore(capacity int, opts ...Option) *MemoryStore {
	h := newHistory(capacity)
	for _, opt := range opts {
		opt(h)
	}
	return &MemoryStore{h: h}
}

// Insert stores a summary and evicts beyond capacity under one write lock
func (s *MemoryStore) Insert(ctx context.Context, summary domain.DatasetSummary, records []domain.EquipmentRecord) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.h.insert(summary, records)
}

// List returns summaries newest first
func (s *MemoryStore) List(ctx context.Context, limit int) ([]domain.DatasetSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.list(limit), nil
}

// Get retrieves a summary by id
func (s *MemoryStore) Get(ctx context.Context, id int64) (domain.DatasetSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.DatasetSummary{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.get(id)
}

// Equipment returns the rows of a retained summary
func (s *MemoryStore) Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.equipment(id)
}

// Count returns the number of retained summaries
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.h.items), nil
}

// Capacity returns the history bound
func (s *MemoryStore) Capacity() int {
	return s.h.capacity
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
