package saved

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps itineraries in process. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]SavedItinerary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]SavedItinerary)}
}

func (s *MemoryStore) Create(_ context.Context, it *SavedItinerary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = *it
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*SavedItinerary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]SavedItinerary, error) {
	s.mu.RLock()
	out := make([]SavedItinerary, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
