package state

import (
	"fmt"

	"github.com/jwebster45206/d20"
)

// PlayerActor builds a d20.Actor view of the player. It fails when the
// player's health values cannot describe a living character.
func PlayerActor(p Player) (*d20.Actor, error) {
	return buildActor(p.Name, p.Health, p.MaxHealth, p.Stats)
}

// CompanionActor builds a d20.Actor view of a party member.
func CompanionActor(c Companion) (*d20.Actor, error) {
	return buildActor(c.Name, c.Health, c.MaxHealth, c.Stats)
}

func buildActor(name string, hp, maxHP int, stats Stats) (*d20.Actor, error) {
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if hp > maxHP {
		return nil, fmt.Errorf("health %d exceeds max health %d", hp, maxHP)
	}

	actor, err := d20.NewActor(name).
		WithHP(maxHP).
		WithAttributes(stats.ToAttributes()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	// Set current HP if different from max
	if hp != maxHP && hp > 0 {
		if err := actor.SetHP(hp); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}
	return actor, nil
}
