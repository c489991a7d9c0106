package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// Slot is a named command position inside the envelope's data object.
type Slot struct {
	Name string
	Kind state.CommandKind
}

// Slots lists every command slot in dispatch order. Each slot accepts only
// its own kind.
var Slots = []Slot{
	{"playerUpdate", state.KindUpdatePlayer},
	{"partyUpdate", state.KindUpdateParty},
	{"enemiesUpdate", state.KindUpdateCurrentEnemies},
	{"campaignUpdate", state.KindUpdateCampaign},
	{"playerSetName", state.KindSetPlayerName},
	{"playerSetGold", state.KindSetPlayerGold},
	{"playerSetHealth", state.KindSetPlayerHealth},
	{"playerSetMaxHealth", state.KindSetPlayerMaxHealth},
	{"playerSetMana", state.KindSetPlayerMana},
	{"playerSetMaxMana", state.KindSetPlayerMaxMana},
	{"playerSetClass", state.KindSetPlayerClass},
	{"playerSetStats", state.KindSetPlayerStats},
	{"playerSetLevel", state.KindSetPlayerLevel},
	{"playerSetExperience", state.KindSetPlayerExperience},
	{"playerAddItemToInventory", state.KindAddItemToPlayerInventory},
	{"playerRemoveItemFromInventory", state.KindRemoveItemFromInventory},
	{"partyAddCompanion", state.KindAddCompanion},
	{"partyRemoveCompanion", state.KindRemoveCompanion},
	{"partyUpdateCompanion", state.KindUpdateCompanion},
	{"campaignSetName", state.KindSetCampaignName},
	{"campaignSetSetting", state.KindSetCampaignSetting},
	{"campaignSetDescription", state.KindSetCampaignDescription},
	{"campaignSetAdditionalInfo", state.KindSetCampaignAdditionalInfo},
	{"enemiesAddEnemy", state.KindAddEnemy},
	{"enemiesRemoveEnemy", state.KindRemoveEnemy},
	{"enemiesUpdateEnemy", state.KindUpdateEnemy},
}

// SlotCommand is a decoded command together with the slot it came from.
type SlotCommand struct {
	Slot    string
	Command state.Command
}

// Envelope is the validated form of a generator response.
type Envelope struct {
	Message string

	// Commands holds the present slots in declared order.
	Commands []SlotCommand

	// IsLoading is nil when the field was absent or null.
	IsLoading *bool

	// Error is nil when the field was absent or null.
	Error *string
}

// Validate checks v against the envelope shape and decodes every present
// command slot. Unknown fields are ignored and no range checks are made.
func Validate(v gjson.Result) (*Envelope, error) {
	if !v.IsObject() {
		return nil, violation("top level must be an object")
	}

	top := fields(v)
	msg := top["message"]
	if msg.Type != gjson.String {
		return nil, violation("message must be a string")
	}
	data := top["data"]
	if !data.IsObject() {
		return nil, violation("data must be an object")
	}
	slots := fields(data)

	env := &Envelope{Message: msg.String()}

	for _, slot := range Slots {
		r := slots[slot.Name]
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		cmd, err := decodeSlot(slot, r)
		if err != nil {
			return nil, err
		}
		env.Commands = append(env.Commands, SlotCommand{Slot: slot.Name, Command: cmd})
	}

	if r := slots["isLoading"]; r.Exists() {
		switch r.Type {
		case gjson.True, gjson.False:
			b := r.Bool()
			env.IsLoading = &b
		case gjson.Null:
		default:
			return nil, violation("isLoading must be a boolean")
		}
	}

	if r := slots["error"]; r.Exists() {
		switch r.Type {
		case gjson.String:
			s := r.String()
			env.Error = &s
		case gjson.Null:
		default:
			return nil, violation("error must be a string or null")
		}
	}

	return env, nil
}

func decodeSlot(slot Slot, r gjson.Result) (state.Command, error) {
	if !r.IsObject() {
		return state.Command{}, violation("%s must be an object", slot.Name)
	}
	obj := fields(r)
	typ := obj["type"]
	if typ.Type != gjson.String {
		return state.Command{}, violation("%s.type must be a string", slot.Name)
	}
	if state.CommandKind(typ.String()) != slot.Kind {
		return state.Command{}, violation("%s.type is %q, want %q", slot.Name, typ.String(), slot.Kind)
	}
	payload := obj["payload"]
	if !payload.Exists() {
		return state.Command{}, violation("%s.payload is missing", slot.Name)
	}
	cmd, err := state.DecodeCommand(slot.Kind, json.RawMessage(payload.Raw))
	if err != nil {
		return state.Command{}, fmt.Errorf("%w: %s: %w", ErrSchemaViolation, slot.Name, err)
	}
	return cmd, nil
}

// fields indexes an object's members by key. A repeated key keeps its last
// value, as encoding/json does.
func fields(obj gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value
		return true
	})
	return out
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}
