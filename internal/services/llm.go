package services

import (
	"context"

	"github.com/jwebster45206/gm-engine/pkg/chat"
)

// TextSource is the upstream text generator acting as game master.
type TextSource interface {
	// Chat sends the conversation and returns the raw assistant text.
	// Implementations must stop and return ctx.Err() when ctx is cancelled.
	Chat(ctx context.Context, messages []chat.ChatMessage) (string, error)
}
