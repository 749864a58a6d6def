package trigger

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/meshmush/structs"
)

// World is the storage collaborator scripts act on. Missing records are
// reported as errors matching os.ErrNotExist.
type World interface {
	// HealPlayer adds up to amount health, capped at the player's maximum,
	// and returns how much was actually added.
	HealPlayer(ctx context.Context, username string, amount int) (int, error)
	MovePlayer(ctx context.Context, username string, roomID string) error
	// ConsumeObject removes objectID from the player's inventory, or else
	// from the room, and reports whether it was found in either.
	ConsumeObject(ctx context.Context, objectID string, username string, roomID string) (bool, error)
	GrantItem(ctx context.Context, username string, objectID string) error
	// SetExitLocked fails with os.ErrNotExist when the room has no such exit.
	SetExitLocked(ctx context.Context, roomID string, exit string, locked bool) (bool, error)
}

var randIntN = rand.IntN

// Execute runs script for the given trigger kind. It never panics and never
// returns an error; every outcome is encoded in the Result. ctx is only
// passed on to World calls, evaluation stops on its own deadline.
func Execute(ctx context.Context, kind structs.TriggerKind, script string, ec *ExecContext, world World) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s script on %q panicked: %v\n%s", kind, ec.ObjectID, r, debug.Stack())
			result = Result{Kind: Failed, Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	if strings.TrimSpace(script) == "" {
		return Result{Kind: NoScript}
	}
	if ec.IsTimedOut() {
		return Result{Kind: TimedOut}
	}
	node, err := compile(script)
	if err != nil {
		return Result{Kind: Failed, Reason: err.Error()}
	}
	e := &evaluator{
		ctx:      ctx,
		ec:       ec,
		world:    world,
		randIntN: randIntN,
	}
	value, err := e.eval(node)
	if err != nil {
		scriptErr := &ScriptError{}
		if errors.As(err, &scriptErr) && scriptErr.Kind == ExecutionTimeout {
			return Result{Kind: TimedOut}
		}
		return Result{Kind: Failed, Reason: err.Error()}
	}
	if len(e.messages) == 0 && !truthy(value) {
		return Result{Kind: Skipped}
	}
	return Result{Kind: Success, Messages: e.messages}
}
