package prompts

import "github.com/jwebster45206/gm-engine/pkg/state"

// PromptState is the part of the world state the game master sees. Loading
// and error flags belong to the client and are left out.
type PromptState struct {
	Player         state.Player      `json:"player"`
	Party          []state.Companion `json:"party"`
	CurrentEnemies []state.Enemy     `json:"currentEnemies"`
	Campaign       state.Campaign    `json:"campaign"`
}

func ToPromptState(ws state.WorldState) *PromptState {
	ps := &PromptState{
		Player:         ws.Player,
		Party:          ws.Party,
		CurrentEnemies: ws.CurrentEnemies,
		Campaign:       ws.Campaign,
	}
	// Empty lists render as [] rather than null.
	if ps.Party == nil {
		ps.Party = []state.Companion{}
	}
	if ps.CurrentEnemies == nil {
		ps.CurrentEnemies = []state.Enemy{}
	}
	if ps.Player.Inventory == nil {
		ps.Player.Inventory = []state.Item{}
	}
	return ps
}
