package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

const worldStatePrefix = "worldstate:"

// RedisStorage implements Storage using Redis for world state snapshots and
// the filesystem for seeds.
type RedisStorage struct {
	*SeedLoader
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis-backed storage on an existing client.
// Snapshots expire after ttl; zero means they never expire.
func NewRedisStorage(client *redis.Client, dataDir string, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		SeedLoader: NewSeedLoader(dataDir, logger),
		client:     client,
		logger:     logger,
		ttl:        ttl,
	}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close is a no-op: the client belongs to services.RedisService.
func (r *RedisStorage) Close() error {
	return nil
}

func (r *RedisStorage) SaveWorldState(ctx context.Context, id uuid.UUID, ws state.WorldState) error {
	data, err := json.Marshal(ws)
	if err != nil {
		r.logger.Error("Failed to marshal world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to marshal world state: %w", err)
	}

	if err := r.client.Set(ctx, worldStatePrefix+id.String(), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to save world state: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadWorldState(ctx context.Context, id uuid.UUID) (*state.WorldState, error) {
	data, err := r.client.Get(ctx, worldStatePrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("World state not found", "session_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load world state", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load world state: %w", err)
	}

	var ws state.WorldState
	if err := json.Unmarshal(data, &ws); err != nil {
		r.logger.Error("Failed to unmarshal world state", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal world state: %w", err)
	}
	return &ws, nil
}

func (r *RedisStorage) DeleteWorldState(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, worldStatePrefix+id.String()).Err(); err != nil {
		r.logger.Error("Failed to delete world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete world state: %w", err)
	}
	return nil
}
