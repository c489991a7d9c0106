package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// MaxMessageLength bounds a single player message.
const MaxMessageLength = 2000

// maxSpeakerLength is how far into a message a "Name:" prefix is looked for.
const maxSpeakerLength = 50

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Game master
	ChatRoleSystem = "system"    // Instructions
)

// ChatMessage is a single entry of the conversation sent to the text
// generator.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// TurnRequest is a player message submitted to a session.
type TurnRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message"`
}

// TurnResponse is what a session returns after one turn.
type TurnResponse struct {
	SessionID uuid.UUID        `json:"session_id"`
	TurnID    uuid.UUID        `json:"turn_id"`
	Message   string           `json:"message"`
	Outcome   string           `json:"outcome"`
	State     state.WorldState `json:"state"`
}

func (tr *TurnRequest) Validate() error {
	if tr.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(tr.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	return nil
}

// IngestRequest asks the API to run one generator response against a state.
type IngestRequest struct {
	State state.WorldState `json:"state"`
	Text  string           `json:"text"`
}

func (ir *IngestRequest) Validate() error {
	if ir.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	return nil
}

// ReduceRequest asks the API to apply one command to a state.
type ReduceRequest struct {
	State   state.WorldState `json:"state"`
	Command state.Command    `json:"command"`
}

// FormatWithSpeaker prefixes message with "name: " unless it already starts
// with a speaker label. Any colon in the first 50 characters counts as a
// label, so "I look at the map: ..." is left alone.
func FormatWithSpeaker(message, name string) string {
	head := message
	if len(head) > maxSpeakerLength {
		head = head[:maxSpeakerLength]
	}
	if strings.Contains(head, ":") {
		return message
	}
	return name + ": " + message
}
