package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zond/meshmush/admission"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type testWorld struct {
	game    *Game
	storage *storage.Storage
	clock   *fakeClock
	dir     string
}

func withGame(tb testing.TB, objects ...*structs.Object) *testWorld {
	tb.Helper()
	ctx := context.Background()
	dir := tb.TempDir()
	s, err := storage.New(ctx, dir)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		s.Close()
	})
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	g, err := New(ctx, s, admission.New(admission.WithClock(clock.Now)), Options{SpawnRoom: "cellar"})
	if err != nil {
		tb.Fatal(err)
	}
	room := &structs.Room{ID: "cellar", Name: "Damp Cellar", Exits: map[string]string{"up": "hall"}}
	for _, obj := range objects {
		if err := s.SetObject(ctx, obj); err != nil {
			tb.Fatal(err)
		}
		room.Items = append(room.Items, obj.ID)
	}
	for _, r := range []*structs.Room{room, {ID: "hall", Name: "Great Hall", Exits: map[string]string{"down": "cellar"}}} {
		if err := s.SetRoom(ctx, r); err != nil {
			tb.Fatal(err)
		}
	}
	if err := s.SetPlayer(ctx, &structs.Player{Username: "alice", Room: "cellar", Health: 40, MaxHealth: 100}); err != nil {
		tb.Fatal(err)
	}
	return &testWorld{game: g, storage: s, clock: clock, dir: dir}
}

func scripted(id string, scripts map[structs.TriggerKind]string) *structs.Object {
	obj := &structs.Object{ID: id, Name: id}
	for kind, script := range scripts {
		obj.SetScript(kind, script)
	}
	return obj
}

func TestNewCreatesSpawnRoom(t *testing.T) {
	ctx := context.Background()
	s, err := storage.New(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := New(ctx, s, admission.New(), Options{}); err != nil {
		t.Fatal(err)
	}
	room, err := s.GetRoom(ctx, DefaultSpawnRoom)
	if err != nil {
		t.Fatal(err)
	}
	if room.Name == "" {
		t.Errorf("spawn room %+v has no name", room)
	}
}

func BenchmarkOnUse(b *testing.B) {
	b.StopTimer()
	ctx := context.Background()
	w := withGame(b, scripted("wand", map[structs.TriggerKind]string{
		structs.OnUse: `has_item("wand") ? message("sparks") : message("$player waves at nothing")`,
	}))
	obj, err := w.storage.GetObject(ctx, "wand")
	if err != nil {
		b.Fatal(err)
	}
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		w.clock.Advance(admission.ObjectWindow)
		if lines := w.game.OnUse(ctx, obj, "alice", "cellar"); len(lines) != 1 {
			b.Fatalf("got %q", lines)
		}
	}
	b.StopTimer()
}
