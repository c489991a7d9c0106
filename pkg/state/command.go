package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// CommandKind is the discriminant of a Command.
type CommandKind string

const (
	KindUpdatePlayer              CommandKind = "UPDATE_PLAYER"
	KindUpdateParty               CommandKind = "UPDATE_PARTY"
	KindUpdateCurrentEnemies      CommandKind = "UPDATE_CURRENT_ENEMIES"
	KindUpdateCampaign            CommandKind = "UPDATE_CAMPAIGN"
	KindSetPlayerName             CommandKind = "SET_PLAYER_NAME"
	KindSetPlayerGold             CommandKind = "SET_PLAYER_GOLD"
	KindSetPlayerHealth           CommandKind = "SET_PLAYER_HEALTH"
	KindSetPlayerMaxHealth        CommandKind = "SET_PLAYER_MAX_HEALTH"
	KindSetPlayerMana             CommandKind = "SET_PLAYER_MANA"
	KindSetPlayerMaxMana          CommandKind = "SET_PLAYER_MAX_MANA"
	KindSetPlayerClass            CommandKind = "SET_PLAYER_CLASS"
	KindSetPlayerStats            CommandKind = "SET_PLAYER_STATS"
	KindSetPlayerLevel            CommandKind = "SET_PLAYER_LEVEL"
	KindSetPlayerExperience       CommandKind = "SET_PLAYER_EXPERIENCE"
	KindAddItemToPlayerInventory  CommandKind = "ADD_ITEM_TO_PLAYER_INVENTORY"
	KindRemoveItemFromInventory   CommandKind = "REMOVE_ITEM_FROM_PLAYER_INVENTORY"
	KindAddCompanion              CommandKind = "ADD_COMPANION"
	KindRemoveCompanion           CommandKind = "REMOVE_COMPANION"
	KindUpdateCompanion           CommandKind = "UPDATE_COMPANION"
	KindSetCampaignName           CommandKind = "SET_CAMPAIGN_NAME"
	KindSetCampaignSetting        CommandKind = "SET_CAMPAIGN_SETTING"
	KindSetCampaignDescription    CommandKind = "SET_CAMPAIGN_DESCRIPTION"
	KindSetCampaignAdditionalInfo CommandKind = "SET_CAMPAIGN_ADDITIONAL_INFO"
	KindAddEnemy                  CommandKind = "ADD_ENEMY"
	KindRemoveEnemy               CommandKind = "REMOVE_ENEMY"
	KindUpdateEnemy               CommandKind = "UPDATE_ENEMY"

	// Meta kinds describe the ingestion process itself. They are never
	// accepted from generator output.
	KindSetLoading CommandKind = "SET_LOADING"
	KindSetError   CommandKind = "SET_ERROR"
)

var (
	// ErrUnknownCommand is returned for a discriminant outside the vocabulary.
	ErrUnknownCommand = errors.New("unknown command kind")

	// ErrInvalidPayload is returned when a payload does not match its kind.
	ErrInvalidPayload = errors.New("invalid command payload")
)

// DomainKinds lists every kind a generator may emit.
var DomainKinds = []CommandKind{
	KindUpdatePlayer,
	KindUpdateParty,
	KindUpdateCurrentEnemies,
	KindUpdateCampaign,
	KindSetPlayerName,
	KindSetPlayerGold,
	KindSetPlayerHealth,
	KindSetPlayerMaxHealth,
	KindSetPlayerMana,
	KindSetPlayerMaxMana,
	KindSetPlayerClass,
	KindSetPlayerStats,
	KindSetPlayerLevel,
	KindSetPlayerExperience,
	KindAddItemToPlayerInventory,
	KindRemoveItemFromInventory,
	KindAddCompanion,
	KindRemoveCompanion,
	KindUpdateCompanion,
	KindSetCampaignName,
	KindSetCampaignSetting,
	KindSetCampaignDescription,
	KindSetCampaignAdditionalInfo,
	KindAddEnemy,
	KindRemoveEnemy,
	KindUpdateEnemy,
}

// IsMeta reports whether k is a meta kind.
func (k CommandKind) IsMeta() bool {
	return k == KindSetLoading || k == KindSetError
}

// Valid reports whether k belongs to the closed vocabulary.
func (k CommandKind) Valid() bool {
	if k.IsMeta() {
		return true
	}
	for _, dk := range DomainKinds {
		if dk == k {
			return true
		}
	}
	return false
}

// CompanionUpdate is the payload of UPDATE_COMPANION.
type CompanionUpdate struct {
	Index     int       `json:"index"`
	Companion Companion `json:"companion"`
}

// EnemyUpdate is the payload of UPDATE_ENEMY.
type EnemyUpdate struct {
	Index int   `json:"index"`
	Enemy Enemy `json:"enemy"`
}

// Command is one typed state mutation. Payload holds the Go type that
// matches Type:
//
//	UPDATE_PLAYER                      Player
//	UPDATE_PARTY                       []Companion
//	UPDATE_CURRENT_ENEMIES             []Enemy
//	UPDATE_CAMPAIGN                    Campaign
//	SET_PLAYER_CLASS                   Class
//	SET_PLAYER_STATS                   Stats
//	ADD_ITEM_TO_PLAYER_INVENTORY       Item
//	ADD_COMPANION                      Companion
//	UPDATE_COMPANION                   CompanionUpdate
//	ADD_ENEMY                          Enemy
//	UPDATE_ENEMY                       EnemyUpdate
//	SET_LOADING                        bool
//	SET_ERROR                          *string
//	numeric setters                    int
//	name/campaign setters, REMOVE_*    string
//
// Build commands with the constructors below or DecodeCommand.
type Command struct {
	Type    CommandKind `json:"type"`
	Payload any         `json:"payload"`
}

func (c Command) String() string {
	return string(c.Type)
}

// UnmarshalJSON decodes {"type": ..., "payload": ...} through DecodeCommand.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    CommandKind     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	cmd, err := DecodeCommand(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// DecodeCommand turns a discriminant and its raw JSON payload into a typed
// Command. The payload must be present and match the kind's shape; unknown
// object fields are ignored.
func DecodeCommand(kind CommandKind, payload json.RawMessage) (Command, error) {
	if !kind.Valid() {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || (bytes.Equal(trimmed, []byte("null")) && kind != KindSetError) {
		return Command{}, fmt.Errorf("%w: %s requires a payload", ErrInvalidPayload, kind)
	}

	switch kind {
	case KindUpdatePlayer:
		return decodeAs[Player](kind, trimmed)
	case KindUpdateParty:
		return decodeAs[[]Companion](kind, trimmed)
	case KindUpdateCurrentEnemies:
		return decodeAs[[]Enemy](kind, trimmed)
	case KindUpdateCampaign:
		return decodeAs[Campaign](kind, trimmed)
	case KindSetPlayerName,
		KindRemoveItemFromInventory,
		KindRemoveCompanion,
		KindSetCampaignName,
		KindSetCampaignSetting,
		KindSetCampaignDescription,
		KindSetCampaignAdditionalInfo,
		KindRemoveEnemy:
		return decodeAs[string](kind, trimmed)
	case KindSetPlayerGold,
		KindSetPlayerHealth,
		KindSetPlayerMaxHealth,
		KindSetPlayerMana,
		KindSetPlayerMaxMana,
		KindSetPlayerLevel,
		KindSetPlayerExperience:
		return decodeAs[int](kind, trimmed)
	case KindSetPlayerClass:
		return decodeAs[Class](kind, trimmed)
	case KindSetPlayerStats:
		return decodeAs[Stats](kind, trimmed)
	case KindAddItemToPlayerInventory:
		return decodeAs[Item](kind, trimmed)
	case KindAddCompanion:
		return decodeAs[Companion](kind, trimmed)
	case KindAddEnemy:
		return decodeAs[Enemy](kind, trimmed)
	case KindUpdateCompanion:
		var p struct {
			Index     *int       `json:"index"`
			Companion *Companion `json:"companion"`
		}
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		if p.Index == nil || p.Companion == nil {
			return Command{}, fmt.Errorf("%w: %s requires index and companion", ErrInvalidPayload, kind)
		}
		return UpdateCompanion(*p.Index, *p.Companion), nil
	case KindUpdateEnemy:
		var p struct {
			Index *int   `json:"index"`
			Enemy *Enemy `json:"enemy"`
		}
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		if p.Index == nil || p.Enemy == nil {
			return Command{}, fmt.Errorf("%w: %s requires index and enemy", ErrInvalidPayload, kind)
		}
		return UpdateEnemy(*p.Index, *p.Enemy), nil
	case KindSetLoading:
		return decodeAs[bool](kind, trimmed)
	case KindSetError:
		var msg *string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		return SetError(msg), nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
}

func decodeAs[T any](kind CommandKind, payload []byte) (Command, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return Command{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
	}
	return Command{Type: kind, Payload: v}, nil
}

// Constructors

func UpdatePlayer(p Player) Command { return Command{Type: KindUpdatePlayer, Payload: p} }
func UpdateParty(p []Companion) Command { return Command{Type: KindUpdateParty, Payload: p} }
func UpdateCurrentEnemies(e []Enemy) Command {
	return Command{Type: KindUpdateCurrentEnemies, Payload: e}
}
func UpdateCampaign(c Campaign) Command { return Command{Type: KindUpdateCampaign, Payload: c} }
func SetPlayerName(name string) Command { return Command{Type: KindSetPlayerName, Payload: name} }
func SetPlayerGold(n int) Command { return Command{Type: KindSetPlayerGold, Payload: n} }
func SetPlayerHealth(n int) Command { return Command{Type: KindSetPlayerHealth, Payload: n} }
func SetPlayerMaxHealth(n int) Command { return Command{Type: KindSetPlayerMaxHealth, Payload: n} }
func SetPlayerMana(n int) Command { return Command{Type: KindSetPlayerMana, Payload: n} }
func SetPlayerMaxMana(n int) Command { return Command{Type: KindSetPlayerMaxMana, Payload: n} }
func SetPlayerClass(c Class) Command { return Command{Type: KindSetPlayerClass, Payload: c} }
func SetPlayerStats(s Stats) Command { return Command{Type: KindSetPlayerStats, Payload: s} }
func SetPlayerLevel(n int) Command { return Command{Type: KindSetPlayerLevel, Payload: n} }
func SetPlayerExperience(n int) Command {
	return Command{Type: KindSetPlayerExperience, Payload: n}
}
func AddItem(item Item) Command { return Command{Type: KindAddItemToPlayerInventory, Payload: item} }
func RemoveItem(name string) Command {
	return Command{Type: KindRemoveItemFromInventory, Payload: name}
}
func AddCompanion(c Companion) Command { return Command{Type: KindAddCompanion, Payload: c} }
func RemoveCompanion(name string) Command { return Command{Type: KindRemoveCompanion, Payload: name} }
func UpdateCompanion(index int, c Companion) Command {
	return Command{Type: KindUpdateCompanion, Payload: CompanionUpdate{Index: index, Companion: c}}
}
func SetCampaignName(s string) Command { return Command{Type: KindSetCampaignName, Payload: s} }
func SetCampaignSetting(s string) Command { return Command{Type: KindSetCampaignSetting, Payload: s} }
func SetCampaignDescription(s string) Command {
	return Command{Type: KindSetCampaignDescription, Payload: s}
}
func SetCampaignAdditionalInfo(s string) Command {
	return Command{Type: KindSetCampaignAdditionalInfo, Payload: s}
}
func AddEnemy(e Enemy) Command { return Command{Type: KindAddEnemy, Payload: e} }
func RemoveEnemy(name string) Command { return Command{Type: KindRemoveEnemy, Payload: name} }
func UpdateEnemy(index int, e Enemy) Command {
	return Command{Type: KindUpdateEnemy, Payload: EnemyUpdate{Index: index, Enemy: e}}
}
func SetLoading(v bool) Command { return Command{Type: KindSetLoading, Payload: v} }

// SetError sets the error flag; a nil message clears it.
func SetError(msg *string) Command { return Command{Type: KindSetError, Payload: msg} }

// SetErrorText is SetError for a literal message.
func SetErrorText(msg string) Command { return SetError(&msg) }

// ClearError is the explicit clear command.
func ClearError() Command { return SetError(nil) }
