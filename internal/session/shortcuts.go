package session

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

type shortcut string

const (
	shortcutInventory shortcut = "inventory"
	shortcutParty     shortcut = "party"
	shortcutStatus    shortcut = "status"
	shortcutNone      shortcut = ""
)

var shortcuts = map[string]shortcut{
	"inventory": shortcutInventory,
	"inv":       shortcutInventory,
	"i":         shortcutInventory,
	"party":     shortcutParty,
	"p":         shortcutParty,
	"status":    shortcutStatus,
	"stats":     shortcutStatus,
}

func parseShortcut(input string) shortcut {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if sc, ok := shortcuts[trimmed]; ok {
		return sc
	}
	return shortcutNone
}

// TryShortcut answers one-word status questions from the world state without
// a round trip to the game master. ok is false when input is not a shortcut.
func TryShortcut(ws state.WorldState, input string) (reply string, ok bool) {
	switch parseShortcut(input) {
	case shortcutInventory:
		return ws.DescribeInventory(), true
	case shortcutParty:
		return describeParty(ws), true
	case shortcutStatus:
		return describeStatus(ws.Player), true
	default:
		return "", false
	}
}

func describeParty(ws state.WorldState) string {
	if len(ws.Party) == 0 {
		return "You are travelling alone."
	}
	lines := make([]string, 0, len(ws.Party))
	for _, c := range ws.Party {
		lines = append(lines, fmt.Sprintf("%s (%d/%d HP)", c.Name, c.Health, c.MaxHealth))
	}
	return "Your party:\n- " + strings.Join(lines, "\n- ")
}

func describeStatus(p state.Player) string {
	return fmt.Sprintf("%s, level %d %s. Health %d/%d, mana %d/%d, %d gold.",
		p.Name, p.Level, p.Class.Name, p.Health, p.MaxHealth, p.Mana, p.MaxMana, p.Gold)
}
