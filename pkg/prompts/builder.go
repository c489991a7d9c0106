package prompts

import (
	"fmt"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// Builder constructs chat messages for LLM interaction using a fluent interface.
// It separates prompt building logic from session management.
type Builder struct {
	ws           *state.WorldState
	history      []chat.ChatMessage
	userMessage  string
	userRole     string
	opening      bool
	historyLimit int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 6,
		userRole:     chat.ChatRoleUser,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithState sets the world state the turn is played against.
func (b *Builder) WithState(ws *state.WorldState) *Builder {
	b.ws = ws
	return b
}

// WithHistory sets the session transcript.
func (b *Builder) WithHistory(history []chat.ChatMessage) *Builder {
	b.history = history
	return b
}

// WithUserMessage sets the user's message and role.
func (b *Builder) WithUserMessage(message string, role string) *Builder {
	b.userMessage = message
	b.userRole = role
	return b
}

// WithOpening makes Build produce the opening turn instead of a user turn.
func (b *Builder) WithOpening() *Builder {
	b.opening = true
	return b
}

// WithHistoryLimit sets the chat history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.ws == nil {
		return nil, fmt.Errorf("world state is required")
	}
	if !b.opening && b.userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	// Reset messages
	b.messages = make([]chat.ChatMessage, 0)

	// 1. System prompt
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: BuildSystemPrompt(b.ws.Campaign),
	})

	// 2. Opening turn, or windowed history plus the user's message
	if b.opening {
		if err := b.addOpening(); err != nil {
			return nil, fmt.Errorf("error building opening prompt: %w", err)
		}
		return b.messages, nil
	}
	b.addHistory()
	if err := b.addUserMessage(); err != nil {
		return nil, fmt.Errorf("error building user prompt: %w", err)
	}

	// 3. Final reminders
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: UserPostPrompt,
	})

	return b.messages, nil
}

func (b *Builder) addOpening() error {
	opening, err := OpeningPrompt(*b.ws)
	if err != nil {
		return err
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: opening,
	})
	return nil
}

// addHistory adds windowed chat history to the message array.
func (b *Builder) addHistory() {
	if len(b.history) == 0 || b.historyLimit <= 0 {
		return
	}

	// Window the history to the specified limit
	if len(b.history) <= b.historyLimit {
		b.messages = append(b.messages, b.history...)
	} else {
		b.messages = append(b.messages, b.history[len(b.history)-b.historyLimit:]...)
	}
}

// addUserMessage adds the current user message, with the game state attached.
func (b *Builder) addUserMessage() error {
	content, err := TurnPrompt(b.userMessage, *b.ws)
	if err != nil {
		return err
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    b.userRole,
		Content: content,
	})
	return nil
}

// BuildMessages is a convenience function for the common case.
// It creates a builder, sets all parameters, and builds the messages in one call.
func BuildMessages(
	ws *state.WorldState,
	history []chat.ChatMessage,
	message string,
	historyLimit int,
) ([]chat.ChatMessage, error) {
	return New().
		WithState(ws).
		WithHistory(history).
		WithUserMessage(message, chat.ChatRoleUser).
		WithHistoryLimit(historyLimit).
		Build()
}

// BuildOpening builds the messages for the first turn of a session.
func BuildOpening(ws *state.WorldState) ([]chat.ChatMessage, error) {
	return New().WithState(ws).WithOpening().Build()
}
