package storage

import (
	"context"
	"sync"
)

// MemoryProvider keeps every room's documents in process memory. It survives
// room eviction but not a process restart.
type MemoryProvider struct {
	mu    sync.Mutex
	rooms map[string]*MemoryStore
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{rooms: make(map[string]*MemoryStore)}
}

var _ Provider = (*MemoryProvider)(nil)

func (p *MemoryProvider) Open(roomID string) Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.rooms[roomID]
	if s == nil {
		s = NewMemoryStore()
		p.rooms[roomID] = s
	}
	return s
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}
