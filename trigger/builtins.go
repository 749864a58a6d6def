package trigger

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
)

// Builtin enumerates the functions scripts may call.
type Builtin int

const (
	BuiltinMessage Builtin = iota
	BuiltinHeal
	BuiltinTeleport
	BuiltinConsume
	BuiltinGrantItem
	BuiltinHasQuest
	BuiltinHasItem
	BuiltinFlagSet
	BuiltinRoomFlag
	BuiltinRandomChance
	BuiltinMessageRoom
	BuiltinCurrentRoom
	BuiltinLockExit
	BuiltinUnlockExit
)

type builtinKind int

const (
	kindMessage builtinKind = iota
	kindAction
	kindCondition
)

type builtinSpec struct {
	name        string
	arity       int
	kind        builtinKind
	run         func(e *evaluator, args []any) (any, error)
	// substitutes expands $variables in string literal arguments.
	substitutes bool
}

var builtins = []builtinSpec{
	BuiltinMessage:      {name: "message", arity: 1, kind: kindMessage, run: runMessage, substitutes: true},
	BuiltinHeal:         {name: "heal", arity: 1, kind: kindAction, run: runHeal},
	BuiltinTeleport:     {name: "teleport", arity: 1, kind: kindAction, run: runTeleport},
	BuiltinConsume:      {name: "consume", arity: 0, kind: kindAction, run: runConsume},
	BuiltinGrantItem:    {name: "grant_item", arity: 1, kind: kindAction, run: runGrantItem},
	BuiltinHasQuest:     {name: "has_quest", arity: 1, kind: kindCondition, run: runHasQuest},
	BuiltinHasItem:      {name: "has_item", arity: 1, kind: kindCondition, run: runHasItem},
	BuiltinFlagSet:      {name: "flag_set", arity: 1, kind: kindCondition, run: runFlagSet},
	BuiltinRoomFlag:     {name: "room_flag", arity: 1, kind: kindCondition, run: runRoomFlag},
	BuiltinRandomChance: {name: "random_chance", arity: 1, kind: kindCondition, run: runRandomChance},
	BuiltinMessageRoom:  {name: "message_room", arity: 1, kind: kindMessage, run: runMessageRoom, substitutes: true},
	BuiltinCurrentRoom:  {name: "current_room", arity: 0, kind: kindCondition, run: runCurrentRoom},
	BuiltinLockExit:     {name: "lock_exit", arity: 1, kind: kindAction, run: runLockExit},
	BuiltinUnlockExit:   {name: "unlock_exit", arity: 1, kind: kindAction, run: runUnlockExit},
}

// roomMessagePrefix marks text meant for everyone in the room.
const roomMessagePrefix = "🔊 "

var builtinsByName = func() map[string]Builtin {
	result := make(map[string]Builtin, len(builtins))
	for i, spec := range builtins {
		result[spec.name] = Builtin(i)
	}
	return result
}()

func (b Builtin) String() string {
	if b < 0 || int(b) >= len(builtins) {
		return fmt.Sprintf("Builtin(%d)", int(b))
	}
	return builtins[b].name
}

// BuiltinNames lists every callable function name in catalog order.
func BuiltinNames() []string {
	result := make([]string, len(builtins))
	for i, spec := range builtins {
		result[i] = spec.name
	}
	return result
}

func runMessage(e *evaluator, args []any) (any, error) {
	if !e.ec.CanSendMessage() {
		return nil, limitErrorf("Message limit reached (%d max)", MaxMessages)
	}
	e.emit(stringify(args[0]))
	return true, nil
}

func runMessageRoom(e *evaluator, args []any) (any, error) {
	if !e.ec.CanSendMessage() {
		return nil, limitErrorf("Message limit reached (%d max)", MaxMessages)
	}
	e.emit(roomMessagePrefix + stringify(args[0]))
	return true, nil
}

func runHeal(e *evaluator, args []any) (any, error) {
	amount, ok := args[0].(int64)
	if !ok || amount <= 0 {
		return nil, argumentErrorf("heal() expects a positive number, got %s", describe(args[0]))
	}
	e.ec.IncrementAction()
	healed, err := e.world.HealPlayer(e.ctx, e.ec.PlayerName, int(amount))
	if err != nil {
		log.Printf("heal(%d) for %q: %v", amount, e.ec.PlayerName, err)
		return false, nil
	}
	if e.ec.CanSendMessage() {
		if healed > 0 {
			e.emit(fmt.Sprintf("Healed for %d HP", healed))
		} else {
			e.emit("You are already at full health.")
		}
	}
	return true, nil
}

func runTeleport(e *evaluator, args []any) (any, error) {
	roomID, ok := args[0].(string)
	if !ok {
		return nil, argumentErrorf("teleport() expects a room id, got %s", describe(args[0]))
	}
	e.ec.IncrementAction()
	if err := e.world.MovePlayer(e.ctx, e.ec.PlayerName, roomID); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("teleport(%q) for %q: %v", roomID, e.ec.PlayerName, err)
		}
		return false, nil
	}
	return true, nil
}

func runConsume(e *evaluator, _ []any) (any, error) {
	e.ec.IncrementAction()
	removed, err := e.world.ConsumeObject(e.ctx, e.ec.ObjectID, e.ec.PlayerName, e.ec.RoomID)
	if err != nil {
		log.Printf("consume() of %q for %q: %v", e.ec.ObjectID, e.ec.PlayerName, err)
		return false, nil
	}
	return removed, nil
}

func runGrantItem(e *evaluator, args []any) (any, error) {
	objectID, ok := args[0].(string)
	if !ok {
		return nil, argumentErrorf("grant_item() expects an object id, got %s", describe(args[0]))
	}
	e.ec.IncrementAction()
	if err := e.world.GrantItem(e.ctx, e.ec.PlayerName, objectID); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("grant_item(%q) for %q: %v", objectID, e.ec.PlayerName, err)
		}
		return false, nil
	}
	return true, nil
}

func runHasQuest(e *evaluator, args []any) (any, error) {
	return e.ec.Player != nil && e.ec.Player.HasQuest(stringify(args[0])), nil
}

func runHasItem(e *evaluator, args []any) (any, error) {
	return e.ec.Player != nil && e.ec.Player.HasItem(stringify(args[0])), nil
}

func runFlagSet(e *evaluator, args []any) (any, error) {
	return e.ec.Object != nil && e.ec.Object.HasFlag(stringify(args[0])), nil
}

func runRoomFlag(e *evaluator, args []any) (any, error) {
	return e.ec.Room != nil && e.ec.Room.HasFlag(stringify(args[0])), nil
}

func runRandomChance(e *evaluator, args []any) (any, error) {
	percent, ok := args[0].(int64)
	if !ok || percent > 100 {
		return nil, argumentErrorf("random_chance() expects a percentage between 0 and 100, got %s", describe(args[0]))
	}
	return int64(e.randIntN(100)) < percent, nil
}

func runCurrentRoom(e *evaluator, _ []any) (any, error) {
	return e.ec.RoomID, nil
}

func runLockExit(e *evaluator, args []any) (any, error) {
	return setExitLocked(e, "lock_exit", args[0], true)
}

func runUnlockExit(e *evaluator, args []any) (any, error) {
	return setExitLocked(e, "unlock_exit", args[0], false)
}

// setExitLocked changes an exit of the current room. A missing exit has no
// effect and is not an error.
func setExitLocked(e *evaluator, name string, arg any, locked bool) (any, error) {
	exit, ok := arg.(string)
	if !ok {
		return nil, argumentErrorf("%s() expects a direction, got %s", name, describe(arg))
	}
	e.ec.IncrementAction()
	if _, err := e.world.SetExitLocked(e.ctx, e.ec.RoomID, exit, locked); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("%s(%q) in %q: %v", name, exit, e.ec.RoomID, err)
		}
		return false, nil
	}
	return true, nil
}
