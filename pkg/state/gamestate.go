package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Class is a character class as described by the game master.
type Class struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Stats holds the six core ability scores.
type Stats struct {
	Strength     int `json:"strength" yaml:"strength"`
	Dexterity    int `json:"dexterity" yaml:"dexterity"`
	Constitution int `json:"constitution" yaml:"constitution"`
	Intelligence int `json:"intelligence" yaml:"intelligence"`
	Wisdom       int `json:"wisdom" yaml:"wisdom"`
	Charisma     int `json:"charisma" yaml:"charisma"`
}

// DefaultStats matches a freshly created character: every score at 10.
func DefaultStats() Stats {
	return Stats{
		Strength:     10,
		Dexterity:    10,
		Constitution: 10,
		Intelligence: 10,
		Wisdom:       10,
		Charisma:     10,
	}
}

// ToAttributes converts Stats to a map for d20.Actor compatibility
func (s Stats) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     s.Strength,
		"dexterity":    s.Dexterity,
		"constitution": s.Constitution,
		"intelligence": s.Intelligence,
		"wisdom":       s.Wisdom,
		"charisma":     s.Charisma,
	}
}

// Item is a single inventory entry. Inventories are keyed by Name.
type Item struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Quantity    int    `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// Ability is something an enemy can do in combat.
type Ability struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Damage      int    `json:"damage,omitempty" yaml:"damage,omitempty"`
	ManaCost    int    `json:"manaCost,omitempty" yaml:"manaCost,omitempty"`
}

// Player is the character controlled by the user.
type Player struct {
	Name       string `json:"name" yaml:"name"`
	Class      Class  `json:"class" yaml:"class"`
	Health     int    `json:"health" yaml:"health"`
	MaxHealth  int    `json:"maxHealth" yaml:"maxHealth"`
	Mana       int    `json:"mana" yaml:"mana"`
	MaxMana    int    `json:"maxMana" yaml:"maxMana"`
	Gold       int    `json:"gold" yaml:"gold"`
	Stats      Stats  `json:"stats" yaml:"stats"`
	Level      int    `json:"level" yaml:"level"`
	Experience int    `json:"experience" yaml:"experience"`
	Inventory  []Item `json:"inventory" yaml:"inventory"`
}

// Companion is a party member. Same shape as Player, without gold.
// Party membership is keyed by Name.
type Companion struct {
	Name       string `json:"name" yaml:"name"`
	Class      Class  `json:"class" yaml:"class"`
	Health     int    `json:"health" yaml:"health"`
	MaxHealth  int    `json:"maxHealth" yaml:"maxHealth"`
	Mana       int    `json:"mana" yaml:"mana"`
	MaxMana    int    `json:"maxMana" yaml:"maxMana"`
	Stats      Stats  `json:"stats" yaml:"stats"`
	Level      int    `json:"level" yaml:"level"`
	Experience int    `json:"experience" yaml:"experience"`
	Inventory  []Item `json:"inventory" yaml:"inventory"`
}

// Enemy is a hostile creature in the current encounter.
type Enemy struct {
	Name      string         `json:"name" yaml:"name"`
	Health    int            `json:"health" yaml:"health"`
	MaxHealth int            `json:"maxHealth" yaml:"maxHealth"`
	Mana      int            `json:"mana" yaml:"mana"`
	MaxMana   int            `json:"maxMana" yaml:"maxMana"`
	Stats     map[string]int `json:"stats" yaml:"stats"`
	Abilities []Ability      `json:"abilities" yaml:"abilities"`
}

// Campaign describes the adventure being played.
type Campaign struct {
	Name           string `json:"name" yaml:"name"`
	Setting        string `json:"setting" yaml:"setting"`
	Description    string `json:"description" yaml:"description"`
	AdditionalInfo string `json:"additionalInfo" yaml:"additionalInfo"`
}

// WorldState is the authoritative snapshot of a game session.
// It is only ever changed through Reduce.
type WorldState struct {
	Player         Player      `json:"player"`
	Party          []Companion `json:"party"`
	CurrentEnemies []Enemy     `json:"currentEnemies"`
	Campaign       Campaign    `json:"campaign"`
	IsLoading      bool        `json:"isLoading"`
	Error          *string     `json:"error"`
}

// Seed is the caller-supplied starting point for a session: the output of
// character creation plus the chosen campaign.
type Seed struct {
	Player   Player      `json:"player" yaml:"player"`
	Party    []Companion `json:"party,omitempty" yaml:"party,omitempty"`
	Campaign Campaign    `json:"campaign" yaml:"campaign"`
}

// NewWorldState builds the initial snapshot for a session from a seed.
// Zero-valued stats and level fall back to new-character defaults.
func NewWorldState(seed Seed) (WorldState, error) {
	p := seed.Player.Clone()
	if p.Stats == (Stats{}) {
		p.Stats = DefaultStats()
	}
	if p.Level == 0 {
		p.Level = 1
	}
	if p.Inventory == nil {
		p.Inventory = make([]Item, 0)
	}
	if p.Health == 0 {
		p.Health = p.MaxHealth
	}
	if p.Mana == 0 {
		p.Mana = p.MaxMana
	}
	if _, err := PlayerActor(p); err != nil {
		return WorldState{}, fmt.Errorf("invalid player %q: %w", p.Name, err)
	}

	party := make([]Companion, 0, len(seed.Party))
	for _, c := range seed.Party {
		c = c.Clone()
		if c.Stats == (Stats{}) {
			c.Stats = DefaultStats()
		}
		if c.Level == 0 {
			c.Level = 1
		}
		if c.Health == 0 {
			c.Health = c.MaxHealth
		}
		if _, err := CompanionActor(c); err != nil {
			return WorldState{}, fmt.Errorf("invalid companion %q: %w", c.Name, err)
		}
		party = append(party, c)
	}

	return WorldState{
		Player:         p,
		Party:          dedupeCompanions(party),
		CurrentEnemies: make([]Enemy, 0),
		Campaign:       seed.Campaign,
	}, nil
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	p.Inventory = slices.Clone(p.Inventory)
	return p
}

// Clone returns a deep copy of the companion.
func (c Companion) Clone() Companion {
	c.Inventory = slices.Clone(c.Inventory)
	return c
}

// Clone returns a deep copy of the enemy.
func (e Enemy) Clone() Enemy {
	e.Stats = maps.Clone(e.Stats)
	e.Abilities = slices.Clone(e.Abilities)
	return e
}

func cloneCompanions(in []Companion) []Companion {
	if in == nil {
		return nil
	}
	out := make([]Companion, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneEnemies(in []Enemy) []Enemy {
	if in == nil {
		return nil
	}
	out := make([]Enemy, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// DeepCopy returns a snapshot that shares no mutable memory with ws.
func (ws WorldState) DeepCopy() WorldState {
	out := ws
	out.Player = ws.Player.Clone()
	out.Party = cloneCompanions(ws.Party)
	out.CurrentEnemies = cloneEnemies(ws.CurrentEnemies)
	if ws.Error != nil {
		msg := *ws.Error
		out.Error = &msg
	}
	return out
}

// ErrorMessage returns the current error text, or "" when there is none.
func (ws WorldState) ErrorMessage() string {
	if ws.Error == nil {
		return ""
	}
	return *ws.Error
}

// CompanionIndex returns the position of the named companion, or -1.
func (ws WorldState) CompanionIndex(name string) int {
	return slices.IndexFunc(ws.Party, func(c Companion) bool { return c.Name == name })
}

// EnemyIndex returns the position of the first enemy with the given name, or -1.
func (ws WorldState) EnemyIndex(name string) int {
	return slices.IndexFunc(ws.CurrentEnemies, func(e Enemy) bool { return e.Name == name })
}

// DescribeInventory renders the player's inventory as a short list.
func (ws WorldState) DescribeInventory() string {
	if len(ws.Player.Inventory) == 0 {
		return "Your inventory is empty."
	}
	names := make([]string, 0, len(ws.Player.Inventory))
	for _, item := range ws.Player.Inventory {
		if item.Quantity > 1 {
			names = append(names, fmt.Sprintf("%s (x%d)", item.Name, item.Quantity))
			continue
		}
		names = append(names, item.Name)
	}
	return "You have:\n- " + strings.Join(names, "\n- ")
}
