package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

var titleCaser = cases.Title(language.English)

// statOrder is the display order of the six ability scores.
var statOrder = []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}

// modifier is the usual ability modifier for a score.
func modifier(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return -((11 - score) / 2)
}

// healthLine renders current and max health through the d20 actor view,
// falling back to the raw values when no actor can be built.
func healthLine(health, maxHealth int, build func() (actorView, error)) string {
	if health <= 0 {
		return fmt.Sprintf("HP 0/%d (fallen)", maxHealth)
	}
	actor, err := build()
	if err != nil {
		return fmt.Sprintf("HP %d/%d", health, maxHealth)
	}
	return fmt.Sprintf("HP %d/%d", actor.HP(), actor.MaxHP())
}

// actorView is the part of *d20.Actor the panel reads.
type actorView interface {
	HP() int
	MaxHP() int
	Attribute(key string) (int, bool)
}

func playerActor(p state.Player) func() (actorView, error) {
	return func() (actorView, error) {
		return state.PlayerActor(p)
	}
}

func companionActor(c state.Companion) func() (actorView, error) {
	return func() (actorView, error) {
		return state.CompanionActor(c)
	}
}

func className(c state.Class) string {
	if c.Name == "" {
		return "Adventurer"
	}
	return titleCaser.String(c.Name)
}

// writeMetadata renders the side panel for ws.
func writeMetadata(ws state.WorldState) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(ws.Campaign.Name)) + "\n")
	if ws.Campaign.Setting != "" {
		content.WriteString(promptStyle.Render(ws.Campaign.Setting) + "\n")
	}
	content.WriteString("\n")

	p := ws.Player
	content.WriteString(speakerStyle.Render(p.Name) + "\n")
	content.WriteString(fmt.Sprintf("Level %d %s\n", p.Level, className(p.Class)))
	content.WriteString(healthLine(p.Health, p.MaxHealth, playerActor(p)) + "\n")
	if p.MaxMana > 0 {
		content.WriteString(fmt.Sprintf("MP %d/%d\n", p.Mana, p.MaxMana))
	}
	content.WriteString(fmt.Sprintf("Gold %d  XP %d\n\n", p.Gold, p.Experience))

	content.WriteString(writeStats(p) + "\n")

	content.WriteString("Inventory:\n")
	if len(p.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range p.Inventory {
		if item.Quantity > 1 {
			content.WriteString(fmt.Sprintf("• %s x%d\n", item.Name, item.Quantity))
			continue
		}
		content.WriteString(fmt.Sprintf("• %s\n", item.Name))
	}
	content.WriteString("\n")

	if len(ws.Party) > 0 {
		content.WriteString("Party:\n")
		for _, c := range ws.Party {
			content.WriteString(fmt.Sprintf("• %s, %s\n  %s\n", c.Name, className(c.Class),
				healthLine(c.Health, c.MaxHealth, companionActor(c))))
		}
		content.WriteString("\n")
	}

	if len(ws.CurrentEnemies) > 0 {
		content.WriteString(errorStyle.Render("Enemies:") + "\n")
		for _, e := range ws.CurrentEnemies {
			content.WriteString(fmt.Sprintf("• %s HP %d/%d\n", e.Name, e.Health, e.MaxHealth))
		}
		content.WriteString("\n")
	}

	if msg := ws.ErrorMessage(); msg != "" {
		content.WriteString(errorStyle.Render("Error: "+msg) + "\n")
		content.WriteString(promptStyle.Render("/clear to dismiss") + "\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Esc: Cancel turn\n")
	content.WriteString("• Ctrl+Y: Copy reply\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• /help: Help\n")

	return content.String()
}

// writeStats lists ability scores with their modifiers.
func writeStats(p state.Player) string {
	actor, err := state.PlayerActor(p)
	attrs := p.Stats.ToAttributes()

	var content strings.Builder
	for _, key := range statOrder {
		score := attrs[key]
		if err == nil {
			if v, ok := actor.Attribute(key); ok {
				score = v
			}
		}
		content.WriteString(fmt.Sprintf("%-13s %2d (%+d)\n", titleCaser.String(key), score, modifier(score)))
	}
	return content.String()
}
