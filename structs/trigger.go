package structs

import (
	"fmt"
	"strings"
)

// TriggerKind is the event that makes an object run one of its scripts.
type TriggerKind int

const (
	OnEnter TriggerKind = iota
	OnLook
	OnTake
	OnDrop
	OnUse
	OnPoke
	OnFollow
	OnIdle
	OnCombat
	OnHeal
)

var triggerKindNames = []string{
	OnEnter:  "on_enter",
	OnLook:   "on_look",
	OnTake:   "on_take",
	OnDrop:   "on_drop",
	OnUse:    "on_use",
	OnPoke:   "on_poke",
	OnFollow: "on_follow",
	OnIdle:   "on_idle",
	OnCombat: "on_combat",
	OnHeal:   "on_heal",
}

// TriggerKinds returns every trigger kind in declaration order.
func TriggerKinds() []TriggerKind {
	result := make([]TriggerKind, len(triggerKindNames))
	for i := range triggerKindNames {
		result[i] = TriggerKind(i)
	}
	return result
}

func (k TriggerKind) Valid() bool {
	return k >= 0 && int(k) < len(triggerKindNames)
}

func (k TriggerKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("TriggerKind(%d)", int(k))
	}
	return triggerKindNames[k]
}

// ParseTriggerKind accepts both "on_look" and "look".
func ParseTriggerKind(s string) (TriggerKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "on_") {
		s = "on_" + s
	}
	for i, name := range triggerKindNames {
		if name == s {
			return TriggerKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trigger kind %q", s)
}

func (k TriggerKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid trigger kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *TriggerKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTriggerKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
