package game

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/admission"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"golang.org/x/term"
)

const (
	DefaultSpawnRoom = "genesis"
)

var (
	initialRooms = map[string]func(*structs.Room){
		DefaultSpawnRoom: func(r *structs.Room) {
			r.Name = "The Clearing"
			r.Description = "A mossy clearing where new arrivals find themselves."
		},
	}
)

type Options struct {
	// SpawnRoom is where new players are created, DefaultSpawnRoom if empty.
	SpawnRoom string
	// Wizards are granted wizard commands in addition to players with the Wizard flag.
	Wizards []string
}

type Game struct {
	storage   *storage.Storage
	limiter   *admission.Controller
	stats     *TriggerStats
	admin     *Admin
	spawnRoom string
	wizards   map[string]bool
}

// New creates a game on top of s. The limiter is shared with every other
// surface that checks or administers triggers.
func New(ctx context.Context, s *storage.Storage, limiter *admission.Controller, opts Options) (*Game, error) {
	if opts.SpawnRoom == "" {
		opts.SpawnRoom = DefaultSpawnRoom
	}
	if _, err := s.GetRoom(ctx, opts.SpawnRoom); errors.Is(err, os.ErrNotExist) {
		room := &structs.Room{ID: opts.SpawnRoom, Name: opts.SpawnRoom}
		if setup, found := initialRooms[opts.SpawnRoom]; found {
			setup(room)
		}
		if err := s.SetRoom(ctx, room); err != nil {
			return nil, meshmush.WithStack(err)
		}
	} else if err != nil {
		return nil, meshmush.WithStack(err)
	}
	stats := NewTriggerStats()
	result := &Game{
		storage:   s,
		limiter:   limiter,
		stats:     stats,
		admin:     NewAdmin(s, limiter, stats),
		spawnRoom: opts.SpawnRoom,
		wizards:   map[string]bool{},
	}
	for _, wiz := range opts.Wizards {
		result.wizards[wiz] = true
	}
	return result, nil
}

func (g *Game) Admin() *Admin {
	return g.admin
}

func (g *Game) Stats() *TriggerStats {
	return g.stats
}

func (g *Game) isWizard(p *structs.Player) bool {
	return p.Wizard || g.wizards[p.Username]
}

func (g *Game) HandleSession(sess ssh.Session) {
	c := &Connection{
		game: g,
		sess: sess,
		term: term.NewTerminal(sess, "> "),
		ctx:  sess.Context(),
	}
	if err := c.Connect(); err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, errQuit) {
			fmt.Fprintf(c.term, "InternalServerError: %v\n", err)
			log.Println(err)
			log.Println(meshmush.StackTrace(err))
		}
	}
}
