package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) (*miniredis.Miniredis, *Broadcaster) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcaster_PublishAndSubscribe(t *testing.T) {
	_, b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID := uuid.New()
	turnID := uuid.New()

	events, err := b.Subscribe(ctx, sessionID)
	require.NoError(t, err)

	require.NoError(t, b.PublishStateUpdated(ctx, sessionID, turnID, "applied", []string{"SET_PLAYER_GOLD"}))
	require.NoError(t, b.PublishIngestFailed(ctx, sessionID, turnID, "parse", "malformed payload"))

	ev := receive(t, events)
	assert.Equal(t, EventTypeStateUpdated, ev.Type)
	assert.Equal(t, sessionID.String(), ev.SessionID)
	assert.Equal(t, turnID.String(), ev.TurnID)
	assert.Equal(t, "applied", ev.Data["outcome"])
	assert.Equal(t, []any{"SET_PLAYER_GOLD"}, ev.Data["applied"])

	ev = receive(t, events)
	assert.Equal(t, EventTypeIngestFailed, ev.Type)
	assert.Equal(t, "parse", ev.Data["stage"])
	assert.Equal(t, "malformed payload", ev.Data["error"])
}

func TestBroadcaster_SessionsAreIsolated(t *testing.T) {
	mr, b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, other := uuid.New(), uuid.New()
	events, err := b.Subscribe(ctx, mine)
	require.NoError(t, err)

	require.NoError(t, b.PublishStateUpdated(ctx, other, uuid.New(), "applied", nil))
	require.NoError(t, b.PublishStateUpdated(ctx, mine, uuid.New(), "narration", nil))

	ev := receive(t, events)
	assert.Equal(t, mine.String(), ev.SessionID)
	assert.Equal(t, "narration", ev.Data["outcome"])

	// Undecodable payloads are skipped.
	mr.Publish(Channel(mine), "not json")
	require.NoError(t, b.PublishIngestFailed(ctx, mine, uuid.New(), "validate", "x"))
	assert.Equal(t, EventTypeIngestFailed, receive(t, events).Type)
}

func TestBroadcaster_SubscribeClosesOnCancel(t *testing.T) {
	_, b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := b.Subscribe(ctx, uuid.New())
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestBroadcaster_PublishError(t *testing.T) {
	mr, b := newTestBroadcaster(t)
	mr.Close()

	err := b.PublishStateUpdated(context.Background(), uuid.New(), uuid.New(), "applied", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "world-events:550e8400-e29b-41d4-a716-446655440000", Channel(id))
}
