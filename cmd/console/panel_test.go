package main

import (
	"strings"
	"testing"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

func TestModifier(t *testing.T) {
	tests := []struct {
		score int
		want  int
	}{
		{score: 10, want: 0},
		{score: 11, want: 0},
		{score: 17, want: 3},
		{score: 9, want: -1},
		{score: 8, want: -1},
		{score: 3, want: -4},
	}
	for _, tt := range tests {
		if got := modifier(tt.score); got != tt.want {
			t.Errorf("modifier(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestWriteMetadata(t *testing.T) {
	ws, err := state.NewWorldState(testSeed())
	if err != nil {
		t.Fatalf("Failed to build world state: %v", err)
	}
	ws.Player.Health = 12
	ws.Player.Inventory = []state.Item{{Name: "Rope"}, {Name: "Torch", Quantity: 3}}
	ws.CurrentEnemies = []state.Enemy{{Name: "Rat", Health: 2, MaxHealth: 4}}
	msg := "Failed to parse assistant response"
	ws.Error = &msg

	panel := writeMetadata(ws)
	for _, want := range []string{
		"THE SUNKEN KEEP",
		"Ranger",
		"HP 12/20",
		"Gold 10",
		"Dexterity",
		"17 (+3)",
		"Torch x3",
		"Zorg, Adventurer",
		"Rat HP 2/4",
		"Error: " + msg,
	} {
		if !strings.Contains(panel, want) {
			t.Errorf("Expected panel to contain %q, got:\n%s", want, panel)
		}
	}
}

func TestHealthLine(t *testing.T) {
	p := state.Player{Name: "Aria", Health: 0, MaxHealth: 20}
	if got := healthLine(p.Health, p.MaxHealth, playerActor(p)); got != "HP 0/20 (fallen)" {
		t.Errorf("Expected fallen line, got %q", got)
	}

	// An unbuildable actor falls back to the raw values.
	p = state.Player{Health: 5, MaxHealth: 20}
	if got := healthLine(p.Health, p.MaxHealth, playerActor(p)); got != "HP 5/20" {
		t.Errorf("Expected raw values, got %q", got)
	}
}
