package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const turnLockPrefix = "turn-lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTurnLock is a TurnLock shared by every process using the same Redis.
// Locks expire after ttl so a crashed holder cannot wedge a session.
type RedisTurnLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ TurnLock = (*RedisTurnLock)(nil)

func NewRedisTurnLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisTurnLock {
	return &RedisTurnLock{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (l *RedisTurnLock) TryLock(ctx context.Context, key string) (UnlockFunc, error) {
	redisKey := turnLockPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock failed: %w", err)
	}
	if !ok {
		l.logger.Debug("Turn lock held elsewhere", "key", redisKey)
		return nil, ErrLockHeld
	}

	l.logger.Debug("Turn lock acquired", "key", redisKey, "ttl", l.ttl)
	return func(ctx context.Context) error {
		released, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int64()
		if err != nil {
			return fmt.Errorf("redis unlock failed: %w", err)
		}
		if released == 0 {
			l.logger.Warn("Turn lock expired before release", "key", redisKey)
		}
		return nil
	}, nil
}
