package trigger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/meshmush/structs"
)

type fakeWorld struct {
	health    map[string]int
	maxHealth int
	rooms     map[string]bool
	objects   map[string]bool
	location  map[string]string
	exits     map[string]bool
	locked    map[string]bool
	consumed  []string
	granted   []string
	healErr   error
	healPanic bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		health:    map[string]int{"alice": 40},
		maxHealth: 100,
		rooms:     map[string]bool{"hall": true, "garden": true},
		objects:   map[string]bool{"lamp": true, "key": true},
		location:  map[string]string{"alice": "hall"},
		exits:     map[string]bool{"hall/north": true},
		locked:    map[string]bool{},
	}
}

func (w *fakeWorld) HealPlayer(_ context.Context, username string, amount int) (int, error) {
	if w.healPanic {
		panic("boom")
	}
	if w.healErr != nil {
		return 0, w.healErr
	}
	before := w.health[username]
	after := min(before+amount, w.maxHealth)
	w.health[username] = after
	return after - before, nil
}

func (w *fakeWorld) MovePlayer(_ context.Context, username string, roomID string) error {
	if !w.rooms[roomID] {
		return os.ErrNotExist
	}
	w.location[username] = roomID
	return nil
}

func (w *fakeWorld) ConsumeObject(_ context.Context, objectID string, _ string, _ string) (bool, error) {
	if !w.objects[objectID] {
		return false, nil
	}
	delete(w.objects, objectID)
	w.consumed = append(w.consumed, objectID)
	return true, nil
}

func (w *fakeWorld) GrantItem(_ context.Context, username string, objectID string) error {
	if !w.objects[objectID] {
		return os.ErrNotExist
	}
	w.granted = append(w.granted, objectID)
	return nil
}

func (w *fakeWorld) SetExitLocked(_ context.Context, roomID string, exit string, locked bool) (bool, error) {
	key := roomID + "/" + exit
	if !w.exits[key] {
		return false, os.ErrNotExist
	}
	changed := w.locked[key] != locked
	w.locked[key] = locked
	return changed, nil
}

func testContext() *ExecContext {
	return NewExecContext(
		&structs.Player{Username: "alice", DisplayName: "Alice", Room: "hall", Health: 40, MaxHealth: 100, Quests: []string{"dragon"}, Inventory: []string{"key"}},
		&structs.Object{ID: "lamp", Name: "brass lamp", Flags: []string{"lit"}},
		&structs.Room{ID: "hall", Name: "Great Hall", Flags: []string{"safe"}},
	)
}

func run(script string, ec *ExecContext, w World) Result {
	return Execute(context.Background(), structs.OnUse, script, ec, w)
}

func chain(call string, n int) string {
	calls := make([]string, n)
	for i := range calls {
		calls[i] = call
	}
	return strings.Join(calls, " && ")
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   Result
	}{
		{
			name:   "message",
			script: `message("The lamp glows")`,
			want:   Result{Kind: Success, Messages: []string{"The lamp glows"}},
		},
		{
			name:   "placeholders",
			script: `message("$player pokes the $object in $room ($player_name, $object_id, $room_id)")`,
			want:   Result{Kind: Success, Messages: []string{"alice pokes the brass lamp in Great Hall (Alice, lamp, hall)"}},
		},
		{
			name:   "player variables",
			script: `message($player) && message($player_name)`,
			want:   Result{Kind: Success, Messages: []string{"alice", "Alice"}},
		},
		{
			name:   "room message",
			script: `message_room("$player_name rings the bell")`,
			want:   Result{Kind: Success, Messages: []string{"🔊 Alice rings the bell"}},
		},
		{
			name:   "current room",
			script: `current_room() ? message(current_room()) : message("nowhere")`,
			want:   Result{Kind: Success, Messages: []string{"hall"}},
		},
		{
			name:   "literal arguments to actions are not expanded",
			script: `teleport("$room_id") ? message("moved") : message("stuck")`,
			want:   Result{Kind: Success, Messages: []string{"stuck"}},
		},
		{
			name:   "variables and numbers as text",
			script: `message($room_id) && message(42) && message(true)`,
			want:   Result{Kind: Success, Messages: []string{"hall", "42", "true"}},
		},
		{
			name:   "heal confirmation",
			script: `message("The fountain glows") && heal(50)`,
			want:   Result{Kind: Success, Messages: []string{"The fountain glows", "Healed for 50 HP"}},
		},
		{
			name:   "has quest",
			script: `has_quest("dragon") ? message("Welcome, hero") : message("Who are you?")`,
			want:   Result{Kind: Success, Messages: []string{"Welcome, hero"}},
		},
		{
			name:   "missing quest",
			script: `has_quest("kraken") ? message("Welcome, hero") : message("Who are you?")`,
			want:   Result{Kind: Success, Messages: []string{"Who are you?"}},
		},
		{
			name:   "conditions hold",
			script: `has_item("key") && flag_set("lit") && room_flag("safe") ? message("yes") : message("no")`,
			want:   Result{Kind: Success, Messages: []string{"yes"}},
		},
		{
			name:   "or falls back",
			script: `has_item("sword") || message("fallback")`,
			want:   Result{Kind: Success, Messages: []string{"fallback"}},
		},
		{
			name:   "conditions not met",
			script: `has_quest("kraken") && message("never")`,
			want:   Result{Kind: Skipped},
		},
		{
			name:   "silent truthy action",
			script: `teleport("garden")`,
			want:   Result{Kind: Success},
		},
		{
			name:   "invalid teleport is silent",
			script: `message("You see a flash") && teleport("nowhere")`,
			want:   Result{Kind: Success, Messages: []string{"You see a flash"}},
		},
		{
			name:   "invalid teleport is falsy",
			script: `teleport("nowhere") ? message("moved") : message("stuck")`,
			want:   Result{Kind: Success, Messages: []string{"stuck"}},
		},
		{
			name:   "empty",
			script: ``,
			want:   Result{Kind: NoScript},
		},
		{
			name:   "whitespace",
			script: "  \n ",
			want:   Result{Kind: NoScript},
		},
		{
			name:   "too long",
			script: strings.Repeat("x", 600),
			want:   Result{Kind: Failed, Reason: "Script too long: 600 characters (max 512)"},
		},
		{
			name:   "unbalanced",
			script: `message("x"`,
			want:   Result{Kind: Failed, Reason: "Unbalanced parentheses: unclosed '('"},
		},
		{
			name:   "unknown function",
			script: `explode("x")`,
			want:   Result{Kind: Failed, Reason: "Unknown function 'explode' at position 0"},
		},
		{
			name:   "bad heal amount",
			script: `heal(0)`,
			want:   Result{Kind: Failed, Reason: "heal() expects a positive number, got 0"},
		},
		{
			name:   "bad heal type",
			script: `heal("lots")`,
			want:   Result{Kind: Failed, Reason: `heal() expects a positive number, got "lots"`},
		},
		{
			name:   "message limit",
			script: chain(`message("hi")`, 4),
			want:   Result{Kind: Failed, Reason: "Message limit reached (3 max)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(tt.script, testContext(), newFakeWorld())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Execute(%q) mismatch (-want +got):\n%s", tt.script, diff)
			}
		})
	}
}

func TestExecuteShortCircuit(t *testing.T) {
	w := newFakeWorld()
	if got := run(`false && heal(10)`, testContext(), w); got.Kind != Skipped {
		t.Errorf("Kind = %v, want %v", got.Kind, Skipped)
	}
	if w.health["alice"] != 40 {
		t.Errorf("health = %d, want 40", w.health["alice"])
	}
	if got := run(`true || heal(10)`, testContext(), w); got.Kind != Success {
		t.Errorf("Kind = %v, want %v", got.Kind, Success)
	}
	if w.health["alice"] != 40 {
		t.Errorf("health = %d, want 40", w.health["alice"])
	}
}

func TestExecuteTernaryEvaluatesOneBranch(t *testing.T) {
	w := newFakeWorld()
	got := run(`has_quest("dragon") ? heal(5) : heal(7)`, testContext(), w)
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"Healed for 5 HP"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if w.health["alice"] != 45 {
		t.Errorf("health = %d, want 45", w.health["alice"])
	}
}

func TestExecuteActionLimit(t *testing.T) {
	w := newFakeWorld()
	w.health["alice"] = 1
	ec := testContext()
	got := run(chain("heal(1)", MaxActions+1), ec, w)
	if got.Kind != Failed || got.Reason != "Action limit reached (10 max)" {
		t.Errorf("got %v, want action limit failure", got)
	}
	if w.health["alice"] != 1+MaxActions {
		t.Errorf("health = %d, want %d", w.health["alice"], 1+MaxActions)
	}
	if ec.ActionCount != MaxActions {
		t.Errorf("ActionCount = %d, want %d", ec.ActionCount, MaxActions)
	}
	if ec.MessageCount != MaxMessages {
		t.Errorf("MessageCount = %d, want %d", ec.MessageCount, MaxMessages)
	}

	w.health["alice"] = 1
	if got := run(chain("heal(1)", MaxActions), testContext(), w); got.Kind != Success {
		t.Errorf("got %v for %d actions, want success", got, MaxActions)
	}
}

func TestExecuteConditionsConsumeNoActions(t *testing.T) {
	ec := testContext()
	got := run(chain(`has_quest("dragon")`, 2*MaxActions)+` && message("ok")`, ec, newFakeWorld())
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"ok"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if ec.ActionCount != 0 {
		t.Errorf("ActionCount = %d, want 0", ec.ActionCount)
	}
}

func nestedTernaries(n int) string {
	script := `message("Deep!")`
	for range n {
		script = fmt.Sprintf("true ? (%s) : false", script)
	}
	return script
}

func TestExecuteDepthLimit(t *testing.T) {
	got := run(nestedTernaries(MaxDepth-1), testContext(), newFakeWorld())
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"Deep!"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	ec := testContext()
	got = run(nestedTernaries(MaxDepth), ec, newFakeWorld())
	if got.Kind != Failed || got.Reason != "Nesting depth limit reached (5 max)" {
		t.Errorf("got %v, want depth failure", got)
	}
	if ec.Depth != 0 {
		t.Errorf("Depth = %d after run, want 0", ec.Depth)
	}
}

func TestExecuteTimeout(t *testing.T) {
	ec := testContext()
	ec.StartedAt = time.Now().Add(-time.Second)
	w := newFakeWorld()
	if got := run(`heal(10)`, ec, w); got.Kind != TimedOut {
		t.Errorf("Kind = %v, want %v", got.Kind, TimedOut)
	}
	if w.health["alice"] != 40 {
		t.Errorf("health = %d, want 40", w.health["alice"])
	}
}

func TestExecuteStorageFailureDegrades(t *testing.T) {
	w := newFakeWorld()
	w.healErr = fmt.Errorf("disk on fire")
	got := run(`heal(5) ? message("yes") : message("no")`, testContext(), w)
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"no"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	w := newFakeWorld()
	w.healPanic = true
	got := run(`heal(5)`, testContext(), w)
	if diff := cmp.Diff(Result{Kind: Failed, Reason: "internal error: boom"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteConsumeAndGrant(t *testing.T) {
	w := newFakeWorld()
	got := run(`message("The lamp crumbles") && consume() && grant_item("key")`, testContext(), w)
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"The lamp crumbles"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lamp"}, w.consumed); diff != "" {
		t.Errorf("consumed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"key"}, w.granted); diff != "" {
		t.Errorf("granted mismatch (-want +got):\n%s", diff)
	}
	got = run(`consume() ? message("gone") : message("already gone")`, testContext(), w)
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"already gone"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteRandomChance(t *testing.T) {
	prev := randIntN
	t.Cleanup(func() { randIntN = prev })
	randIntN = func(int) int { return 10 }

	tests := []struct {
		script string
		want   Result
	}{
		{`random_chance(11) ? message("lucky") : message("unlucky")`, Result{Kind: Success, Messages: []string{"lucky"}}},
		{`random_chance(10) ? message("lucky") : message("unlucky")`, Result{Kind: Success, Messages: []string{"unlucky"}}},
		{`random_chance(150)`, Result{Kind: Failed, Reason: "random_chance() expects a percentage between 0 and 100, got 150"}},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(tt.script, testContext(), newFakeWorld())); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteExpandsOnlyOnce(t *testing.T) {
	ec := NewExecContext(
		&structs.Player{Username: "mallory", DisplayName: "$room_id $player"},
		&structs.Object{ID: "lamp", Name: "$object_id"},
		&structs.Room{ID: "hall", Name: "Great Hall"},
	)
	got := run(`message($player_name) && message("$object in $room")`, ec, newFakeWorld())
	want := Result{Kind: Success, Messages: []string{"$room_id $player", "$object_id in Great Hall"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteExitLocks(t *testing.T) {
	w := newFakeWorld()
	ec := testContext()
	got := run(`lock_exit("north") && message("Click.") && unlock_exit("west")`, ec, w)
	if diff := cmp.Diff(Result{Kind: Success, Messages: []string{"Click."}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !w.locked["hall/north"] {
		t.Errorf("north exit of hall not locked")
	}
	if ec.ActionCount != 2 {
		t.Errorf("ActionCount = %d, want 2", ec.ActionCount)
	}
	run(`unlock_exit("north")`, testContext(), w)
	if w.locked["hall/north"] {
		t.Errorf("north exit of hall still locked")
	}
	if got := run(`lock_exit(3)`, testContext(), w); got.Kind != Failed || got.Reason != "lock_exit() expects a direction, got 3" {
		t.Errorf("got %+v, want argument failure", got)
	}
}
