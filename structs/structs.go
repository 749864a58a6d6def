package structs

import (
	"slices"
	"time"
)

// Player is the persistent record of a connected node's character.
type Player struct {
	Username    string
	DisplayName string
	Room        string
	Health      int
	MaxHealth   int
	// Quests holds the ids of active and completed quests.
	Quests    []string
	Inventory []string
	Wizard    bool
	CreatedAt time.Time
}

func (p *Player) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

func (p *Player) HasQuest(id string) bool {
	return slices.Contains(p.Quests, id)
}

func (p *Player) HasItem(id string) bool {
	return slices.Contains(p.Inventory, id)
}

type Room struct {
	ID          string
	Name        string
	Description string
	// Exits maps exit names to destination room ids.
	Exits map[string]string
	// LockedExits lists exits that exist but can't be used right now.
	LockedExits []string
	Items       []string
	Flags       []string
}

func (r *Room) HasFlag(flag string) bool {
	return slices.Contains(r.Flags, flag)
}

func (r *Room) HasItem(id string) bool {
	return slices.Contains(r.Items, id)
}

func (r *Room) IsLocked(exit string) bool {
	return slices.Contains(r.LockedExits, exit)
}

// Object is an item definition that may carry trigger scripts.
type Object struct {
	ID          string
	Name        string
	Description string
	Takeable    bool
	Flags       []string
	// Scripts is keyed by TriggerKind.String().
	Scripts map[string]string
}

func (o *Object) HasFlag(flag string) bool {
	return slices.Contains(o.Flags, flag)
}

func (o *Object) Script(kind TriggerKind) string {
	return o.Scripts[kind.String()]
}

// SetScript stores script for kind, an empty script removes it.
func (o *Object) SetScript(kind TriggerKind, script string) {
	if script == "" {
		delete(o.Scripts, kind.String())
		return
	}
	if o.Scripts == nil {
		o.Scripts = map[string]string{}
	}
	o.Scripts[kind.String()] = script
}

// Without returns list without the first occurrence of id, and whether it was present.
func Without(list []string, id string) ([]string, bool) {
	idx := slices.Index(list, id)
	if idx == -1 {
		return list, false
	}
	return slices.Delete(slices.Clone(list), idx, idx+1), true
}
