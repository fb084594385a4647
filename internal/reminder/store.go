package reminder

import (
	"context"
	"sync"
)

// Store holds reminder configurations. Implementations need not be safe for
// concurrent use; the Registry serializes access.
type Store interface {
	Put(ctx context.Context, c Config) error
	Get(ctx context.Context, k Key) (Config, bool, error)
	List(ctx context.Context) ([]Config, error)
}

// MemoryStore keeps reminders for the life of the process only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]Config
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]Config)}
}

func (m *MemoryStore) Put(_ context.Context, c Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[c.Key] = c
	return nil
}

func (m *MemoryStore) Get(_ context.Context, k Key) (Config, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[k]
	return c, ok, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Config, 0, len(m.entries))
	for _, c := range m.entries {
		out = append(out, c)
	}
	return out, nil
}
