package repository

import (
	"context"
	"sync"

	"github.com/okian/biasaudit/internal/domain/model"
)

// MemoryStore keeps reports in a map with a treap index for newest-first
// listing. Reports are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]model.Report
	order   index
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]model.Report)}
}

func (s *MemoryStore) Save(_ context.Context, r model.Report) error { //nolint:gocritic // hugeParam
	if r.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.reports[r.ID]; ok {
		s.order.remove(keyOf(old.ID, old.CreatedAt))
	}
	s.reports[r.ID] = r
	s.order.put(keyOf(r.ID, r.CreatedAt))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return r, nil
}

// List walks the index in O(log n + limit).
func (s *MemoryStore) List(_ context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order.first(limit)
	out := make([]model.Report, len(ids))
	for i, id := range ids {
		out[i] = s.reports[id]
	}
	return out, nil
}

func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *MemoryStore) Close() error { return nil }
