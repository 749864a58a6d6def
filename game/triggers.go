package game

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/meshmush/admission"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"
)

const (
	triggerErrorPrefix = "Trigger error: "
)

// OnLook runs obj's look script for username in roomID and returns the player visible output.
func (g *Game) OnLook(ctx context.Context, obj *structs.Object, username string, roomID string) []string {
	return g.fire(ctx, "onLook", structs.OnLook, obj, username, roomID)
}

func (g *Game) OnTake(ctx context.Context, obj *structs.Object, username string, roomID string) []string {
	return g.fire(ctx, "onTake", structs.OnTake, obj, username, roomID)
}

func (g *Game) OnDrop(ctx context.Context, obj *structs.Object, username string, roomID string) []string {
	return g.fire(ctx, "onDrop", structs.OnDrop, obj, username, roomID)
}

func (g *Game) OnUse(ctx context.Context, obj *structs.Object, username string, roomID string) []string {
	return g.fire(ctx, "onUse", structs.OnUse, obj, username, roomID)
}

func (g *Game) OnPoke(ctx context.Context, obj *structs.Object, username string, roomID string) []string {
	return g.fire(ctx, "onPoke", structs.OnPoke, obj, username, roomID)
}

// OnEnterRoom runs the enter script of every object in roomID, in room item
// order, and concatenates their output. Once the player is admitted for one
// object the rest of the sweep skips the player cooldown.
func (g *Game) OnEnterRoom(ctx context.Context, username string, roomID string) []string {
	const verb = "onEnterRoom"
	player, room, ok := g.snapshot(ctx, verb, username, roomID)
	if !ok {
		return nil
	}
	objects, err := g.storage.LoadObjects(ctx, room.Items)
	if err != nil {
		log.Printf("%s: loading objects of %q: %v", verb, roomID, err)
		return nil
	}
	var result []string
	admitted := false
	for _, obj := range objects {
		script := obj.Script(structs.OnEnter)
		if strings.TrimSpace(script) == "" {
			continue
		}
		if admitted {
			err = g.limiter.CheckObject(obj.ID)
		} else {
			err = g.limiter.CheckAllowed(obj.ID, username)
		}
		if err != nil {
			g.rejected(verb, structs.OnEnter, obj, err)
			if errors.Is(err, admission.ErrPlayerCooldown) || errors.Is(err, admission.ErrGlobalDisabled) {
				break
			}
			continue
		}
		admitted = true
		result = append(result, render(g.execute(ctx, structs.OnEnter, script, obj, player, room))...)
	}
	return result
}

func (g *Game) fire(ctx context.Context, verb string, kind structs.TriggerKind, obj *structs.Object, username string, roomID string) []string {
	if obj == nil {
		return nil
	}
	script := obj.Script(kind)
	if strings.TrimSpace(script) == "" {
		return nil
	}
	player, room, ok := g.snapshot(ctx, verb, username, roomID)
	if !ok {
		return nil
	}
	if err := g.limiter.CheckAllowed(obj.ID, username); err != nil {
		g.rejected(verb, kind, obj, err)
		return nil
	}
	return render(g.execute(ctx, kind, script, obj, player, room))
}

// snapshot loads the records conditions read. Failures are logged and
// suppress the trigger.
func (g *Game) snapshot(ctx context.Context, verb string, username string, roomID string) (*structs.Player, *structs.Room, bool) {
	player, err := g.storage.GetPlayer(ctx, username)
	if err != nil {
		log.Printf("%s: loading player %q: %v", verb, username, err)
		return nil, nil, false
	}
	room, err := g.storage.GetRoom(ctx, roomID)
	if err != nil {
		log.Printf("%s: loading room %q: %v", verb, roomID, err)
		return nil, nil, false
	}
	return player, room, true
}

// execute runs an admitted script and records the execution.
func (g *Game) execute(ctx context.Context, kind structs.TriggerKind, script string, obj *structs.Object, player *structs.Player, room *structs.Room) trigger.Result {
	ec := trigger.NewExecContext(player, obj, room)
	res := trigger.Execute(ctx, kind, script, ec, g.storage)
	duration := ec.Elapsed()
	g.limiter.RecordExecution(obj.ID, player.Username)
	g.stats.Record(kind, obj.ID, res, duration)
	switch res.Kind {
	case trigger.TimedOut:
		log.Printf("%s script on %q timed out after %v", kind, obj.ID, duration.Round(time.Millisecond))
	case trigger.Failed:
		log.Printf("%s script on %q failed: %s", kind, obj.ID, res.Reason)
	}
	return res
}

func (g *Game) rejected(verb string, kind structs.TriggerKind, obj *structs.Object, err error) {
	g.stats.Record(kind, obj.ID, trigger.Result{Kind: trigger.RateLimited, Reason: err.Error()}, 0)
	if errors.Is(err, admission.ErrGlobalDisabled) || errors.Is(err, admission.ErrTriggerDisabled) {
		log.Printf("%s: %v", verb, err)
	}
}

// render turns a result into the lines shown to the player.
func render(res trigger.Result) []string {
	switch res.Kind {
	case trigger.Success:
		return res.Messages
	case trigger.Failed:
		return []string{triggerErrorPrefix + res.Reason}
	}
	return nil
}
