package loader

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"
)

func testStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func restoreSeed(t *testing.T, s *storage.Storage) *World {
	t.Helper()
	f, err := os.Open("testdata/seed.json")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := Restore(context.Background(), s, f)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestRestoreSeed(t *testing.T) {
	ctx := context.Background()
	s := testStorage(t)
	w := restoreSeed(t, s)
	if len(w.Rooms) != 2 || len(w.Objects) != 3 {
		t.Fatalf("restored %d rooms and %d objects", len(w.Rooms), len(w.Objects))
	}
	pool, err := s.GetObject(ctx, "pool")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(pool.Script(structs.OnPoke), `room_flag("dark")`) {
		t.Errorf("pool poke script = %q, short keys should be normalized", pool.Script(structs.OnPoke))
	}
	if _, found := pool.Scripts["poke"]; found {
		t.Error("un-normalized key survived")
	}
	grotto, err := s.GetRoom(ctx, "grotto")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"mushroom", "pool"}, grotto.Items); diff != "" {
		t.Errorf("grotto items mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreRejectsInvalidScripts(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			name: "syntax error",
			json: `{"Objects": [{"ID": "rock", "Scripts": {"on_poke": "message(\"unclosed"}}]}`,
			want: `object "rock" script on_poke: `,
		},
		{
			name: "unknown function",
			json: `{"Objects": [{"ID": "rock", "Scripts": {"use": "explode()"}}]}`,
			want: `object "rock" script on_use: Unknown function 'explode'`,
		},
		{
			name: "unknown kind",
			json: `{"Objects": [{"ID": "rock", "Scripts": {"on_dance": "true"}}]}`,
			want: `object "rock" script on_dance: unknown trigger kind`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStorage(t)
			json := strings.Replace(tt.json, `{"Objects"`, `{"Rooms": [{"ID": "hall"}], "Objects"`, 1)
			_, err := Restore(context.Background(), s, strings.NewReader(json))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Restore() = %v, want error containing %q", err, tt.want)
			}
			invalid := &InvalidScriptError{}
			if !errors.As(err, &invalid) || invalid.ObjectID != "rock" {
				t.Errorf("Restore() error %v is not an InvalidScriptError for rock", err)
			}
			if _, err := s.GetRoom(context.Background(), "hall"); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("room stored despite invalid script: %v", err)
			}
		})
	}
}

func TestRestoreScriptErrorsUnwrap(t *testing.T) {
	s := testStorage(t)
	_, err := Restore(context.Background(), s, strings.NewReader(`{"Objects": [{"ID": "rock", "Scripts": {"on_use": "heal(1"}}]}`))
	scriptErr := &trigger.ScriptError{}
	if !errors.As(err, &scriptErr) {
		t.Errorf("Restore() = %v, want a wrapped *trigger.ScriptError", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStorage(t)
	restoreSeed(t, s)
	if err := s.SetPlayer(ctx, &structs.Player{Username: "alice", Room: "grotto", Health: 10, MaxHealth: 100}); err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	backup, err := Backup(ctx, s, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(backup.Players) != 1 || backup.Objects[0].ID != "mushroom" {
		t.Errorf("Backup() = %+v", backup)
	}

	other := testStorage(t)
	restored, err := Restore(ctx, other, buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(backup, restored, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-backup +restored):\n%s", diff)
	}
}
