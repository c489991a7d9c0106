package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/gm-engine/pkg/chat"
)

// DefaultMockResponse is returned once scripted responses run out.
const DefaultMockResponse = "The world waits for your next move.\n```json\n{\"message\": \"The world waits for your next move.\", \"data\": {}}\n```"

// MockTextSource is a scripted TextSource for tests and offline play.
type MockTextSource struct {
	ChatFunc func(ctx context.Context, messages []chat.ChatMessage) (string, error)

	// Responses are returned in order, one per call.
	Responses []string

	// Track calls for testing
	ChatCalls []ChatCall

	mu sync.Mutex // protects all fields above
}

type ChatCall struct {
	Messages []chat.ChatMessage
}

var _ TextSource = (*MockTextSource)(nil)

// NewMockTextSource creates a mock that replies with responses in order.
func NewMockTextSource(responses ...string) *MockTextSource {
	return &MockTextSource{
		Responses: responses,
		ChatCalls: make([]ChatCall, 0),
	}
}

// Chat records the call and returns the next scripted response.
func (m *MockTextSource) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: messages})
	fn := m.ChatFunc
	var next string
	scripted := len(m.Responses) > 0
	if fn == nil && scripted {
		next = m.Responses[0]
		m.Responses = m.Responses[1:]
	}
	m.mu.Unlock()

	// ChatFunc runs unlocked so it may block on ctx.
	if fn != nil {
		return fn(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if scripted {
		return next, nil
	}
	return DefaultMockResponse, nil
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockTextSource) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		return "", err
	}
}

// SetBlocking makes Chat wait until its context is cancelled.
func (m *MockTextSource) SetBlocking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

// Reset clears all call tracking
func (m *MockTextSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls = make([]ChatCall, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockTextSource) GetCalls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ChatCall, len(m.ChatCalls))
	copy(calls, m.ChatCalls)
	return calls
}
