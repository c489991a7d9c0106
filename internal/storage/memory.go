package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// MemoryStorage keeps snapshots in process. It backs the API when no Redis
// is configured and doubles as the storage fake in tests.
type MemoryStorage struct {
	*SeedLoader

	mu        sync.RWMutex
	states    map[uuid.UUID]state.WorldState
	pingError error
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(dataDir string, logger *slog.Logger) *MemoryStorage {
	return &MemoryStorage{
		SeedLoader: NewSeedLoader(dataDir, logger),
		states:     make(map[uuid.UUID]state.WorldState),
	}
}

// SetPingError configures Ping to fail with err; nil restores success.
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveWorldState(ctx context.Context, id uuid.UUID, ws state.WorldState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = ws.DeepCopy()
	return nil
}

func (m *MemoryStorage) LoadWorldState(ctx context.Context, id uuid.UUID) (*state.WorldState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	cp := ws.DeepCopy()
	return &cp, nil
}

func (m *MemoryStorage) DeleteWorldState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}
