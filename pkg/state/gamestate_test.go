package state

import (
	"encoding/json"
	"strings"
	"testing"
)

func testSeed() Seed {
	return Seed{
		Player: Player{
			Name:      "Aria",
			Class:     Class{Name: "Ranger", Description: "A tracker of the wild"},
			MaxHealth: 20,
			MaxMana:   5,
			Gold:      10,
		},
		Party: []Companion{
			{Name: "Borin", Class: Class{Name: "Fighter"}, MaxHealth: 24},
		},
		Campaign: Campaign{
			Name:    "The Sunken Keep",
			Setting: "A drowned fortress on the northern coast",
		},
	}
}

func TestNewWorldState(t *testing.T) {
	ws, err := NewWorldState(testSeed())
	if err != nil {
		t.Fatalf("NewWorldState() error = %v", err)
	}

	if ws.Player.Health != 20 {
		t.Errorf("Health = %d, want 20", ws.Player.Health)
	}
	if ws.Player.Mana != 5 {
		t.Errorf("Mana = %d, want 5", ws.Player.Mana)
	}
	if ws.Player.Level != 1 {
		t.Errorf("Level = %d, want 1", ws.Player.Level)
	}
	if ws.Player.Stats != DefaultStats() {
		t.Errorf("Stats = %+v, want defaults", ws.Player.Stats)
	}
	if ws.Player.Inventory == nil || len(ws.Player.Inventory) != 0 {
		t.Errorf("Inventory = %v, want empty non-nil slice", ws.Player.Inventory)
	}
	if len(ws.Party) != 1 || ws.Party[0].Health != 24 {
		t.Errorf("Party = %+v, want Borin at full health", ws.Party)
	}
	if ws.CurrentEnemies == nil || len(ws.CurrentEnemies) != 0 {
		t.Errorf("CurrentEnemies = %v, want empty non-nil slice", ws.CurrentEnemies)
	}
	if ws.IsLoading {
		t.Error("IsLoading = true, want false")
	}
	if ws.Error != nil {
		t.Errorf("Error = %q, want nil", *ws.Error)
	}
}

func TestNewWorldState_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Seed)
		errMsg string
	}{
		{
			name:   "missing player name",
			mutate: func(s *Seed) { s.Player.Name = "" },
			errMsg: "name cannot be empty",
		},
		{
			name:   "zero max health",
			mutate: func(s *Seed) { s.Player.MaxHealth = 0 },
			errMsg: "invalid player",
		},
		{
			name:   "health above max",
			mutate: func(s *Seed) { s.Player.Health = 30 },
			errMsg: "exceeds max health",
		},
		{
			name:   "companion without max health",
			mutate: func(s *Seed) { s.Party[0].MaxHealth = 0 },
			errMsg: "invalid companion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := testSeed()
			tt.mutate(&seed)
			_, err := NewWorldState(seed)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewWorldState_DedupesSeedParty(t *testing.T) {
	seed := testSeed()
	seed.Party = []Companion{
		{Name: "Borin", MaxHealth: 10},
		{Name: "Kael", MaxHealth: 12},
		{Name: "Borin", MaxHealth: 30},
	}
	ws, err := NewWorldState(seed)
	if err != nil {
		t.Fatalf("NewWorldState() error = %v", err)
	}
	if len(ws.Party) != 2 {
		t.Fatalf("len(Party) = %d, want 2", len(ws.Party))
	}
	if ws.Party[0].Name != "Borin" || ws.Party[0].MaxHealth != 30 {
		t.Errorf("Party[0] = %+v, want last Borin", ws.Party[0])
	}
}

func TestWorldState_DeepCopy(t *testing.T) {
	ws, err := NewWorldState(testSeed())
	if err != nil {
		t.Fatal(err)
	}
	ws.Player.Inventory = []Item{{Name: "rope"}}
	ws.CurrentEnemies = []Enemy{{Name: "Drowned", Stats: map[string]int{"strength": 12}}}
	msg := "boom"
	ws.Error = &msg

	cp := ws.DeepCopy()
	cp.Player.Inventory[0].Name = "torch"
	cp.Party[0].Name = "Someone"
	cp.CurrentEnemies[0].Stats["strength"] = 1
	*cp.Error = "changed"

	if ws.Player.Inventory[0].Name != "rope" {
		t.Error("inventory shared with copy")
	}
	if ws.Party[0].Name != "Borin" {
		t.Error("party shared with copy")
	}
	if ws.CurrentEnemies[0].Stats["strength"] != 12 {
		t.Error("enemy stats shared with copy")
	}
	if ws.ErrorMessage() != "boom" {
		t.Error("error string shared with copy")
	}
}

func TestWorldState_JSONFieldNames(t *testing.T) {
	ws, err := NewWorldState(testSeed())
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(ws)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, field := range []string{`"maxHealth"`, `"currentEnemies"`, `"isLoading"`, `"additionalInfo"`, `"error":null`} {
		if !strings.Contains(out, field) {
			t.Errorf("marshalled state missing %s: %s", field, out)
		}
	}
}

func TestWorldState_Lookups(t *testing.T) {
	ws := WorldState{
		Party:          []Companion{{Name: "Borin"}, {Name: "Kael"}},
		CurrentEnemies: []Enemy{{Name: "Goblin"}, {Name: "Goblin"}},
	}
	if got := ws.CompanionIndex("Kael"); got != 1 {
		t.Errorf("CompanionIndex(Kael) = %d, want 1", got)
	}
	if got := ws.CompanionIndex("Zorg"); got != -1 {
		t.Errorf("CompanionIndex(Zorg) = %d, want -1", got)
	}
	if got := ws.EnemyIndex("Goblin"); got != 0 {
		t.Errorf("EnemyIndex(Goblin) = %d, want 0", got)
	}
}

func TestWorldState_DescribeInventory(t *testing.T) {
	var ws WorldState
	if got := ws.DescribeInventory(); got != "Your inventory is empty." {
		t.Errorf("empty inventory = %q", got)
	}
	ws.Player.Inventory = []Item{{Name: "rope"}, {Name: "arrow", Quantity: 20}}
	want := "You have:\n- rope\n- arrow (x20)"
	if got := ws.DescribeInventory(); got != want {
		t.Errorf("DescribeInventory() = %q, want %q", got, want)
	}
}
