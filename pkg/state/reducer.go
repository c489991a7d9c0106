package state

import (
	"errors"
	"fmt"
	"slices"
)

// ErrIndexOutOfRange is returned by UPDATE_COMPANION and UPDATE_ENEMY when the
// index does not address an existing entry.
var ErrIndexOutOfRange = errors.New("index out of range")

// Reduce applies one command to ws and returns the next snapshot. It never
// mutates ws or the command payload; slices it touches are copied and
// untouched sub-trees may be shared with the input.
//
// On error the returned snapshot equals ws.
func Reduce(ws WorldState, cmd Command) (WorldState, error) {
	next := ws

	switch cmd.Type {
	case KindUpdatePlayer:
		p, err := payload[Player](cmd)
		if err != nil {
			return ws, err
		}
		next.Player = p.Clone()

	case KindUpdateParty:
		party, err := payload[[]Companion](cmd)
		if err != nil {
			return ws, err
		}
		next.Party = cloneCompanions(party)
		if next.Party != nil {
			next.Party = dedupeCompanions(next.Party)
		}

	case KindUpdateCurrentEnemies:
		enemies, err := payload[[]Enemy](cmd)
		if err != nil {
			return ws, err
		}
		next.CurrentEnemies = cloneEnemies(enemies)

	case KindUpdateCampaign:
		c, err := payload[Campaign](cmd)
		if err != nil {
			return ws, err
		}
		next.Campaign = c

	case KindSetPlayerName:
		v, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Name = v
	case KindSetPlayerGold:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Gold = v
	case KindSetPlayerHealth:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Health = v
	case KindSetPlayerMaxHealth:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.MaxHealth = v
	case KindSetPlayerMana:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Mana = v
	case KindSetPlayerMaxMana:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.MaxMana = v
	case KindSetPlayerClass:
		v, err := payload[Class](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Class = v
	case KindSetPlayerStats:
		v, err := payload[Stats](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Stats = v
	case KindSetPlayerLevel:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Level = v
	case KindSetPlayerExperience:
		v, err := payload[int](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Experience = v

	case KindAddItemToPlayerInventory:
		item, err := payload[Item](cmd)
		if err != nil {
			return ws, err
		}
		inv := make([]Item, 0, len(ws.Player.Inventory)+1)
		inv = append(inv, ws.Player.Inventory...)
		next.Player.Inventory = append(inv, item)

	case KindRemoveItemFromInventory:
		name, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Player.Inventory = slices.DeleteFunc(slices.Clone(ws.Player.Inventory), func(i Item) bool {
			return i.Name == name
		})

	case KindAddCompanion:
		c, err := payload[Companion](cmd)
		if err != nil {
			return ws, err
		}
		party := make([]Companion, 0, len(ws.Party)+1)
		party = append(party, ws.Party...)
		next.Party = dedupeCompanions(append(party, c.Clone()))

	case KindRemoveCompanion:
		name, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Party = slices.DeleteFunc(slices.Clone(ws.Party), func(c Companion) bool {
			return c.Name == name
		})

	case KindUpdateCompanion:
		u, err := payload[CompanionUpdate](cmd)
		if err != nil {
			return ws, err
		}
		if u.Index < 0 || u.Index >= len(ws.Party) {
			return ws, fmt.Errorf("%w: companion index %d, party size %d", ErrIndexOutOfRange, u.Index, len(ws.Party))
		}
		for i, c := range ws.Party {
			if i != u.Index && c.Name == u.Companion.Name {
				return ws, fmt.Errorf("%w: companion %q is already at index %d", ErrInvalidPayload, c.Name, i)
			}
		}
		next.Party = slices.Clone(ws.Party)
		next.Party[u.Index] = u.Companion.Clone()

	case KindSetCampaignName:
		v, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Campaign.Name = v
	case KindSetCampaignSetting:
		v, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Campaign.Setting = v
	case KindSetCampaignDescription:
		v, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Campaign.Description = v
	case KindSetCampaignAdditionalInfo:
		v, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.Campaign.AdditionalInfo = v

	case KindAddEnemy:
		e, err := payload[Enemy](cmd)
		if err != nil {
			return ws, err
		}
		enemies := make([]Enemy, 0, len(ws.CurrentEnemies)+1)
		enemies = append(enemies, ws.CurrentEnemies...)
		next.CurrentEnemies = append(enemies, e.Clone())

	case KindRemoveEnemy:
		name, err := payload[string](cmd)
		if err != nil {
			return ws, err
		}
		next.CurrentEnemies = slices.DeleteFunc(slices.Clone(ws.CurrentEnemies), func(e Enemy) bool {
			return e.Name == name
		})

	case KindUpdateEnemy:
		u, err := payload[EnemyUpdate](cmd)
		if err != nil {
			return ws, err
		}
		if u.Index < 0 || u.Index >= len(ws.CurrentEnemies) {
			return ws, fmt.Errorf("%w: enemy index %d, encounter size %d", ErrIndexOutOfRange, u.Index, len(ws.CurrentEnemies))
		}
		next.CurrentEnemies = slices.Clone(ws.CurrentEnemies)
		next.CurrentEnemies[u.Index] = u.Enemy.Clone()

	case KindSetLoading:
		v, err := payload[bool](cmd)
		if err != nil {
			return ws, err
		}
		next.IsLoading = v

	case KindSetError:
		if cmd.Payload == nil {
			next.Error = nil
			break
		}
		msg, err := payload[*string](cmd)
		if err != nil {
			return ws, err
		}
		if msg == nil {
			next.Error = nil
		} else {
			text := *msg
			next.Error = &text
		}

	default:
		return ws, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	return next, nil
}

// ReduceAll folds cmds over ws in order. It stops at the first failing
// command and returns ws unchanged alongside the error and the index of the
// command that failed.
func ReduceAll(ws WorldState, cmds []Command) (WorldState, int, error) {
	next := ws
	for i, cmd := range cmds {
		var err error
		next, err = Reduce(next, cmd)
		if err != nil {
			return ws, i, fmt.Errorf("command %d (%s): %w", i, cmd.Type, err)
		}
	}
	return next, -1, nil
}

func payload[T any](cmd Command) (T, error) {
	v, ok := cmd.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s expects %T, got %T", ErrInvalidPayload, cmd.Type, zero, cmd.Payload)
	}
	return v, nil
}

// dedupeCompanions collapses entries sharing a name into one. The last
// occurrence's data wins and takes the position of the first occurrence, so
// [A, B, C, B'] becomes [A, B', C].
func dedupeCompanions(party []Companion) []Companion {
	pos := make(map[string]int, len(party))
	out := make([]Companion, 0, len(party))
	for _, c := range party {
		if i, ok := pos[c.Name]; ok {
			out[i] = c
			continue
		}
		pos[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}
