package services

import (
	"context"
	"errors"
	"sync"
)

// ErrLockHeld is returned when another turn already holds the lock.
var ErrLockHeld = errors.New("turn lock already held")

// UnlockFunc releases a lock obtained from a TurnLock.
type UnlockFunc func(ctx context.Context) error

// TurnLock serializes turns on a session. TryLock never waits: it either
// takes the lock or returns ErrLockHeld.
type TurnLock interface {
	TryLock(ctx context.Context, key string) (UnlockFunc, error)
}

// MemoryTurnLock is a TurnLock for a single process.
type MemoryTurnLock struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

var _ TurnLock = (*MemoryTurnLock)(nil)

func NewMemoryTurnLock() *MemoryTurnLock {
	return &MemoryTurnLock{held: make(map[string]uint64)}
}

func (l *MemoryTurnLock) TryLock(_ context.Context, key string) (UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	l.next++
	token := l.next
	l.held[key] = token

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A second unlock must not release a later holder.
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
