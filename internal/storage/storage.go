package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// Storage combines world state snapshots (Redis or memory) with seed loading
// (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// World state snapshots. LoadWorldState returns nil, nil when id is unknown.
	SaveWorldState(ctx context.Context, id uuid.UUID, ws state.WorldState) error
	LoadWorldState(ctx context.Context, id uuid.UUID) (*state.WorldState, error)
	DeleteWorldState(ctx context.Context, id uuid.UUID) error

	// Seed operations (filesystem-backed)
	ListSeeds(ctx context.Context) ([]string, error)
	GetSeed(ctx context.Context, seedID string) (*state.Seed, error)
}
