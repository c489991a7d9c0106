package prompts

import (
	"strings"
	"testing"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

func testState(t *testing.T) *state.WorldState {
	t.Helper()
	ws, err := state.NewWorldState(state.Seed{
		Player: state.Player{
			Name:      "Aria",
			Class:     state.Class{Name: "Ranger", Description: "A tracker of the wild"},
			MaxHealth: 20,
			Gold:      10,
			Inventory: []state.Item{{Name: "longbow"}},
		},
		Party:    []state.Companion{{Name: "Borin", MaxHealth: 24}},
		Campaign: state.Campaign{Name: "The Sunken Keep", Setting: "A drowned fortress"},
	})
	if err != nil {
		t.Fatalf("NewWorldState() error = %v", err)
	}
	return &ws
}

func history(n int) []chat.ChatMessage {
	msgs := make([]chat.ChatMessage, n)
	for i := range msgs {
		role := chat.ChatRoleUser
		if i%2 == 1 {
			role = chat.ChatRoleAgent
		}
		msgs[i] = chat.ChatMessage{Role: role, Content: string(rune('a' + i))}
	}
	return msgs
}

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyLimit != 6 {
		t.Errorf("Expected default history limit of 6, got %d", builder.historyLimit)
	}
	if builder.messages == nil {
		t.Error("Expected messages slice to be initialized")
	}
}

func TestBuilder_FluentInterface(t *testing.T) {
	ws := testState(t)
	h := history(2)

	builder := New().
		WithState(ws).
		WithHistory(h).
		WithUserMessage("Hello", chat.ChatRoleUser).
		WithHistoryLimit(10)

	if builder.ws != ws {
		t.Error("WithState did not set state")
	}
	if len(builder.history) != 2 {
		t.Error("WithHistory did not set history")
	}
	if builder.userMessage != "Hello" || builder.userRole != chat.ChatRoleUser {
		t.Error("WithUserMessage did not set message and role")
	}
	if builder.historyLimit != 10 {
		t.Error("WithHistoryLimit did not set limit")
	}
}

func TestBuilder_Build_Requires(t *testing.T) {
	if _, err := New().WithUserMessage("hi", chat.ChatRoleUser).Build(); err == nil || err.Error() != "world state is required" {
		t.Errorf("Expected 'world state is required' error, got: %v", err)
	}
	if _, err := New().WithState(testState(t)).Build(); err == nil || err.Error() != "user message is required" {
		t.Errorf("Expected 'user message is required' error, got: %v", err)
	}
}

func TestBuilder_Build_Turn(t *testing.T) {
	ws := testState(t)

	messages, err := BuildMessages(ws, history(4), "I open the door.", 6)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// system + 4 history + user + reminder
	if len(messages) != 7 {
		t.Fatalf("Expected 7 messages, got %d", len(messages))
	}
	if messages[0].Role != chat.ChatRoleSystem || !strings.Contains(messages[0].Content, "The Sunken Keep") {
		t.Errorf("First message should be the system prompt, got %+v", messages[0])
	}
	user := messages[5]
	if user.Role != chat.ChatRoleUser {
		t.Errorf("Expected user role, got %s", user.Role)
	}
	if !strings.HasPrefix(user.Content, "I open the door.\n\nGame state so far: {") {
		t.Errorf("User message missing game state: %q", user.Content)
	}
	if messages[6].Content != UserPostPrompt {
		t.Errorf("Last message should be the reminder, got %q", messages[6].Content)
	}
}

func TestBuilder_Build_HistoryWindow(t *testing.T) {
	tests := []struct {
		name        string
		historyLen  int
		limit       int
		wantHistory int
	}{
		{"under limit", 3, 6, 3},
		{"at limit", 6, 6, 6},
		{"over limit", 10, 4, 4},
		{"disabled", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := history(tt.historyLen)
			messages, err := BuildMessages(testState(t), h, "go", tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			got := len(messages) - 3
			if got != tt.wantHistory {
				t.Fatalf("Expected %d history messages, got %d", tt.wantHistory, got)
			}
			if got > 0 && messages[got].Content != h[len(h)-1].Content {
				t.Errorf("Expected most recent history last, got %q", messages[got].Content)
			}
		})
	}
}

func TestBuilder_Build_Opening(t *testing.T) {
	messages, err := BuildOpening(testState(t))
	if err != nil {
		t.Fatalf("BuildOpening() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected system + opening, got %d messages", len(messages))
	}
	opening := messages[1].Content
	for _, want := range []string{
		"Name: The Sunken Keep",
		"Setting: A drowned fortress",
		"Class name: Ranger",
		"Class description: A tracker of the wild",
		`"strength":10`,
		"Level: 1",
		`[{"name":"longbow"}]`,
		`"name":"Borin"`,
	} {
		if !strings.Contains(opening, want) {
			t.Errorf("Opening prompt missing %q:\n%s", want, opening)
		}
	}
}
