package tabid

import (
	"context"
	"sync"
)

// MemoryStorage keeps the identity in process memory.
type MemoryStorage struct {
	mu sync.Mutex
	id string
}

// NewMemoryStorage returns storage preloaded with id ("" for empty).
func NewMemoryStorage(id string) *MemoryStorage {
	return &MemoryStorage{id: id}
}

func (s *MemoryStorage) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryStorage) Store(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
