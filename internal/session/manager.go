package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// ErrNotFound is returned when a session id is neither live nor snapshotted.
var ErrNotFound = errors.New("session not found")

// SnapshotStore persists world states between turns. *storage.RedisStorage
// and *storage.MemoryStorage implement it.
type SnapshotStore interface {
	SaveWorldState(ctx context.Context, id uuid.UUID, ws state.WorldState) error
	LoadWorldState(ctx context.Context, id uuid.UUID) (*state.WorldState, error)
	DeleteWorldState(ctx context.Context, id uuid.UUID) error
}

// Manager keeps the live sessions of one process and snapshots their world
// state after every turn so they can be resumed elsewhere. Each turn starts
// from the latest snapshot, so processes sharing a store and a turn lock can
// take turns on the same session.
type Manager struct {
	source   services.TextSource
	store    SnapshotStore
	defaults Options
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a manager. defaults are applied to every session it
// creates; defaults.ID is ignored.
func NewManager(source services.TextSource, store SnapshotStore, defaults Options) *Manager {
	if defaults.Logger == nil {
		defaults.Logger = slog.Default()
	}
	return &Manager{
		source:   source,
		store:    store,
		defaults: defaults,
		logger:   defaults.Logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create builds a session from seed and stores its initial snapshot.
func (m *Manager) Create(ctx context.Context, seed state.Seed) (*Session, error) {
	ws, err := state.NewWorldState(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	s := New(ws, m.source, m.options(uuid.New()))

	if err := m.store.SaveWorldState(ctx, s.ID(), ws); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("Session created", "session_id", s.ID(), "campaign", ws.Campaign.Name)
	return s, nil
}

// Get returns the live session for id, resuming it from its snapshot when
// this process has not seen it yet. A resumed session has no history and
// counts as started.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	ws, err := m.store.LoadWorldState(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrNotFound
	}

	resumed := New(*ws, m.source, m.options(id))
	resumed.started = true

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have resumed it first.
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	m.sessions[id] = resumed
	m.logger.Info("Session resumed from snapshot", "session_id", id)
	return resumed, nil
}

// Start plays the session's opening turn and snapshots the result.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) (*Turn, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turn, err := s.Start(ctx)
	m.persist(ctx, s)
	return turn, err
}

// Submit plays one turn and snapshots the result.
func (m *Manager) Submit(ctx context.Context, id uuid.UUID, text string) (*Turn, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turn, err := s.Submit(ctx, text)
	if err != nil {
		return nil, err
	}
	m.persist(ctx, s)
	return turn, nil
}

// ClearError clears the session's error flag and snapshots the result.
func (m *Manager) ClearError(ctx context.Context, id uuid.UUID) (state.WorldState, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return state.WorldState{}, err
	}
	if err := s.reload(ctx); err != nil {
		return state.WorldState{}, err
	}
	if err := s.ClearError(); err != nil {
		return state.WorldState{}, err
	}
	m.persist(ctx, s)
	return s.State(), nil
}

// Cancel aborts the in-flight turn of a live session.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Cancel()
	return nil
}

// Delete closes the session and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	if err := m.store.DeleteWorldState(ctx, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// CloseAll closes every live session. Snapshots are kept.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) options(id uuid.UUID) Options {
	opts := m.defaults
	opts.ID = id
	opts.Loader = func(ctx context.Context) (*state.WorldState, error) {
		return m.store.LoadWorldState(ctx, id)
	}
	return opts
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if err := m.store.SaveWorldState(ctx, s.ID(), s.State()); err != nil {
		m.logger.Error("Failed to save world state", "session_id", s.ID(), "error", err)
	}
}
