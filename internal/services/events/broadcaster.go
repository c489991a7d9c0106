package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStateUpdated EventType = "world.state_updated"
	EventTypeIngestFailed EventType = "world.ingest_failed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	TurnID    string         `json:"turn_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel for a session.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("world-events:%s", sessionID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for rendering layers
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishStateUpdated publishes a world.state_updated event
func (b *Broadcaster) PublishStateUpdated(ctx context.Context, sessionID, turnID uuid.UUID, outcome string, applied []string) error {
	event := Event{
		Type:      EventTypeStateUpdated,
		TurnID:    turnID.String(),
		SessionID: sessionID.String(),
		Data: map[string]any{
			"outcome": outcome,
			"applied": applied,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// PublishIngestFailed publishes a world.ingest_failed event
func (b *Broadcaster) PublishIngestFailed(ctx context.Context, sessionID, turnID uuid.UUID, stage string, errorMsg string) error {
	event := Event{
		Type:      EventTypeIngestFailed,
		TurnID:    turnID.String(),
		SessionID: sessionID.String(),
		Data: map[string]any{
			"stage": stage,
			"error": errorMsg,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// Subscribe returns a channel of decoded events for a session. The channel
// closes when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan Event, error) {
	sub := b.redisClient.Subscribe(ctx, Channel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("Dropping undecodable event", "error", err, "channel", msg.Channel)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// publishToSession publishes an event to the session-specific channel
func (b *Broadcaster) publishToSession(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := Channel(sessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"turn_id", event.TurnID,
	)

	return nil
}
