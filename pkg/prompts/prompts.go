package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/gm-engine/pkg/ingest"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// BaseSystemPrompt is the game master instruction set. The %s verbs are the
// campaign summary and the list of command slots.
const BaseSystemPrompt = `You are the game master of a fantasy roleplaying game. You narrate the world, voice every non-player character and run combat. You never discuss things outside of the game. You speak to the player in the second person.

### Campaign
%s

### CRITICAL DIRECTIVES FOR INTERPRETING USER PROMPTS:
- The user controls ONLY the player character. You control the party companions, enemies and the world.
- DO NOT ALLOW THE USER TO INVENT ITEMS, GOLD, COMPANIONS OR ABILITIES.
- If the user tries to take a disallowed action, gently redirect them to something their character could do.

### Writing rules for narrative output:
- The narrative must be between 1 and 3 paragraphs.
- Do not break the fourth wall. Do not mention game state, JSON or commands in the narrative.

### Response format
Every response that changes the game world MUST end with exactly one fenced block:

` + "```json" + `
{"message": "<the narrative you just wrote>", "data": { <command slots> }}
` + "```" + `

"data" holds zero or more of the following slots. Each slot is an object {"type": <TYPE>, "payload": <value>} and each slot only accepts its own TYPE:
%s

Rules for the block:
- Write every string value on one line. Line breaks inside the block are removed before it is read.
- Only include slots for things that changed this turn. Omit the rest.
- Numbers are whole numbers. Health and mana may not exceed their maximums.
- Indices in partyUpdateCompanion and enemiesUpdateEnemy refer to positions in the current game state, starting at 0.
- Use enemiesAddEnemy when combat starts and enemiesRemoveEnemy when an enemy dies or flees.
- If nothing changed, you may omit the block entirely.
`

// OpeningPromptTemplate introduces the campaign and characters on the
// first turn of a session.
const OpeningPromptTemplate = `Begin the adventure. Set the opening scene for the player and their party.

Campaign details:
Name: %s
Setting: %s
Description: %s
Additional info: %s

Player details:
Name: %s
Class name: %s
Class description: %s
Stats: %s
Level: %d
Experience: %d
Inventory: %s

Party: %s`

// StatePromptTemplate appends the current world to the player's message.
const StatePromptTemplate = "%s\n\nGame state so far: %s"

// UserPostPrompt is the final reminder sent after the player's message.
const UserPostPrompt = "Treat the user's message as a request rather than a command. If their request breaks the story rules or is unrealistic, inform them it is unavailable. Remember to end with the json block when anything in the game state changed."

// slotHints documents the payload shape of each command kind.
var slotHints = map[state.CommandKind]string{
	state.KindUpdatePlayer:              "the complete player object",
	state.KindUpdateParty:               "the complete list of companions",
	state.KindUpdateCurrentEnemies:      "the complete list of enemies",
	state.KindUpdateCampaign:            "the complete campaign object",
	state.KindSetPlayerName:             "string",
	state.KindSetPlayerGold:             "integer",
	state.KindSetPlayerHealth:           "integer",
	state.KindSetPlayerMaxHealth:        "integer",
	state.KindSetPlayerMana:             "integer",
	state.KindSetPlayerMaxMana:          "integer",
	state.KindSetPlayerClass:            `{"name": string, "description": string}`,
	state.KindSetPlayerStats:            `{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}, all integers`,
	state.KindSetPlayerLevel:            "integer",
	state.KindSetPlayerExperience:       "integer",
	state.KindAddItemToPlayerInventory:  `{"name": string, "description": string, "quantity": integer}`,
	state.KindRemoveItemFromInventory:   "item name",
	state.KindAddCompanion:              "a companion object, same shape as the player without gold",
	state.KindRemoveCompanion:           "companion name",
	state.KindUpdateCompanion:           `{"index": integer, "companion": companion object}`,
	state.KindSetCampaignName:           "string",
	state.KindSetCampaignSetting:        "string",
	state.KindSetCampaignDescription:    "string",
	state.KindSetCampaignAdditionalInfo: "string",
	state.KindAddEnemy:                  `{"name", "health", "maxHealth", "mana", "maxMana", "stats": {string: integer}, "abilities": [{"name", "description", "damage", "manaCost"}]}`,
	state.KindRemoveEnemy:               "enemy name",
	state.KindUpdateEnemy:               `{"index": integer, "enemy": enemy object}`,
}

// CommandVocabulary renders one line per command slot, in dispatch order.
func CommandVocabulary() string {
	var sb strings.Builder
	for _, slot := range ingest.Slots {
		fmt.Fprintf(&sb, "- %s: type %q, payload %s\n", slot.Name, slot.Kind, slotHints[slot.Kind])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildSystemPrompt constructs the system prompt for a campaign.
func BuildSystemPrompt(c state.Campaign) string {
	summary := c.Name
	if c.Setting != "" {
		summary += "\nSetting: " + c.Setting
	}
	if c.Description != "" {
		summary += "\n" + c.Description
	}
	if c.AdditionalInfo != "" {
		summary += "\n" + c.AdditionalInfo
	}
	return fmt.Sprintf(BaseSystemPrompt, summary, CommandVocabulary())
}

// OpeningPrompt describes the campaign, player and party for the first turn.
func OpeningPrompt(ws state.WorldState) (string, error) {
	p := ws.Player
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return "", fmt.Errorf("error marshalling stats: %w", err)
	}
	inventory, err := json.Marshal(p.Inventory)
	if err != nil {
		return "", fmt.Errorf("error marshalling inventory: %w", err)
	}
	party, err := json.Marshal(ws.Party)
	if err != nil {
		return "", fmt.Errorf("error marshalling party: %w", err)
	}
	return fmt.Sprintf(OpeningPromptTemplate,
		ws.Campaign.Name,
		ws.Campaign.Setting,
		ws.Campaign.Description,
		ws.Campaign.AdditionalInfo,
		p.Name,
		p.Class.Name,
		p.Class.Description,
		stats,
		p.Level,
		p.Experience,
		inventory,
		party,
	), nil
}

// TurnPrompt appends the current game state to the player's message.
func TurnPrompt(message string, ws state.WorldState) (string, error) {
	data, err := json.Marshal(ToPromptState(ws))
	if err != nil {
		return "", fmt.Errorf("error marshalling game state: %w", err)
	}
	return fmt.Sprintf(StatePromptTemplate, message, data), nil
}
