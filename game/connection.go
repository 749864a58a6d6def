package game

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/lang"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"golang.org/x/term"
)

var (
	errQuit = errors.New("quit")
)

type Connection struct {
	game *Game
	sess ssh.Session
	term *term.Terminal
	wiz  bool
	ctx  context.Context // Derived from sess.Context(), carries the session ID
	// username is the player record key, the SSH user name.
	username string
}

// load returns fresh copies of the player and their room. Scripts may have
// moved or healed the player since the last command.
func (c *Connection) load() (*structs.Player, *structs.Room, error) {
	player, err := c.game.storage.GetPlayer(c.ctx, c.username)
	if err != nil {
		return nil, nil, meshmush.WithStack(err)
	}
	room, err := c.game.storage.GetRoom(c.ctx, player.Room)
	if err != nil {
		return nil, nil, meshmush.WithStack(err)
	}
	return player, room, nil
}

func (c *Connection) print(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(c.term, line)
	}
}

func (c *Connection) describeRoom(room *structs.Room) error {
	fmt.Fprintln(c.term, room.Name)
	if room.Description != "" {
		fmt.Fprintln(c.term)
		fmt.Fprintln(c.term, room.Description)
	}
	objects, err := c.game.storage.LoadObjects(c.ctx, room.Items)
	if err != nil {
		return meshmush.WithStack(err)
	}
	if len(objects) > 0 {
		names := make([]string, len(objects))
		for idx, obj := range objects {
			names[idx] = lang.Indef(obj.Name)
		}
		fmt.Fprintln(c.term)
		fmt.Fprintf(c.term, "You see %s here.\n", lang.Enumerator{}.Do(names...))
	}
	if len(room.Exits) > 0 {
		exits := make(sort.StringSlice, 0, len(room.Exits))
		for name := range room.Exits {
			exits = append(exits, name)
		}
		sort.Sort(exits)
		fmt.Fprintf(c.term, "Exits: %s.\n", lang.Enumerator{}.Do(exits...))
	}
	return nil
}

// enterRoom describes the player's room and runs its enter triggers.
func (c *Connection) enterRoom() error {
	_, room, err := c.load()
	if err != nil {
		return meshmush.WithStack(err)
	}
	if err := c.describeRoom(room); err != nil {
		return meshmush.WithStack(err)
	}
	c.print(c.game.OnEnterRoom(c.ctx, c.username, room.ID))
	return nil
}

type command struct {
	names map[string]bool
	f     func(*Connection, string) error
}

type attempter interface {
	attempt(conn *Connection, name string, line string) (bool, error)
}

type commands []command

func (c commands) attempt(conn *Connection, name string, line string) (bool, error) {
	for _, cmd := range c {
		if cmd.names[name] {
			if err := cmd.f(conn, line); err != nil {
				return true, meshmush.WithStack(err)
			}
			return true, nil
		}
	}
	return false, nil
}

func m(s ...string) map[string]bool {
	res := map[string]bool{}
	for _, p := range s {
		res[p] = true
	}
	return res
}

type where int

const (
	inRoom where = 1 << iota
	inInventory
)

// findObject locates the object called name (by id or case insensitive name)
// among the places in w, preferring the inventory.
func (c *Connection) findObject(player *structs.Player, room *structs.Room, w where, name string) (*structs.Object, error) {
	var ids []string
	if w&inInventory != 0 {
		ids = append(ids, player.Inventory...)
	}
	if w&inRoom != 0 {
		ids = append(ids, room.Items...)
	}
	objects, err := c.game.storage.LoadObjects(c.ctx, ids)
	if err != nil {
		return nil, meshmush.WithStack(err)
	}
	for _, obj := range objects {
		if obj.ID == name || strings.EqualFold(obj.Name, name) {
			return obj, nil
		}
	}
	return nil, nil
}

// targetCommand builds a command that resolves its argument to an object
// before calling f.
func targetCommand(verb string, w where, f func(c *Connection, player *structs.Player, room *structs.Room, obj *structs.Object) error) func(*Connection, string) error {
	return func(c *Connection, line string) error {
		parts, err := shellwords.SplitPosix(line)
		if err != nil {
			return meshmush.WithStack(err)
		}
		if len(parts) < 2 {
			fmt.Fprintf(c.term, "%s what?\n", lang.Capitalize(verb))
			return nil
		}
		player, room, err := c.load()
		if err != nil {
			return meshmush.WithStack(err)
		}
		name := strings.Join(parts[1:], " ")
		obj, err := c.findObject(player, room, w, name)
		if err != nil {
			return meshmush.WithStack(err)
		}
		if obj == nil {
			fmt.Fprintf(c.term, "You see no %q here.\n", name)
			return nil
		}
		return f(c, player, room, obj)
	}
}

func (c *Connection) move(exit string) error {
	player, room, err := c.load()
	if err != nil {
		return meshmush.WithStack(err)
	}
	dest, found := room.Exits[exit]
	if !found {
		fmt.Fprintln(c.term, "You can't go that way.")
		return nil
	}
	if room.IsLocked(exit) {
		fmt.Fprintf(c.term, "The way %s is locked.\n", exit)
		return nil
	}
	if err := c.game.storage.MovePlayer(c.ctx, player.Username, dest); err != nil {
		return meshmush.WithStack(err)
	}
	return c.enterRoom()
}

func (c *Connection) basicCommands() commands {
	return []command{
		{
			names: m("l", "look"),
			f: func(c *Connection, line string) error {
				if len(whitespacePattern.Split(strings.TrimSpace(line), -1)) < 2 {
					_, room, err := c.load()
					if err != nil {
						return meshmush.WithStack(err)
					}
					return c.describeRoom(room)
				}
				return targetCommand("look at", inRoom|inInventory, func(c *Connection, _ *structs.Player, room *structs.Room, obj *structs.Object) error {
					fmt.Fprintln(c.term, obj.Name)
					if obj.Description != "" {
						fmt.Fprintln(c.term, obj.Description)
					}
					c.print(c.game.OnLook(c.ctx, obj, c.username, room.ID))
					return nil
				})(c, line)
			},
		},
		{
			names: m("take", "get"),
			f: targetCommand("take", inRoom, func(c *Connection, player *structs.Player, room *structs.Room, obj *structs.Object) error {
				if !obj.Takeable {
					fmt.Fprintf(c.term, "You can't take %s.\n", lang.Indef(obj.Name))
					return nil
				}
				if err := c.game.storage.TakeObject(c.ctx, player.Username, obj.ID); err != nil {
					return meshmush.WithStack(err)
				}
				fmt.Fprintf(c.term, "You take %s.\n", lang.Indef(obj.Name))
				c.print(c.game.OnTake(c.ctx, obj, c.username, room.ID))
				return nil
			}),
		},
		{
			names: m("drop"),
			f: targetCommand("drop", inInventory, func(c *Connection, player *structs.Player, room *structs.Room, obj *structs.Object) error {
				if err := c.game.storage.DropObject(c.ctx, player.Username, obj.ID); err != nil {
					return meshmush.WithStack(err)
				}
				fmt.Fprintf(c.term, "You drop %s.\n", lang.Indef(obj.Name))
				c.print(c.game.OnDrop(c.ctx, obj, c.username, room.ID))
				return nil
			}),
		},
		{
			names: m("use"),
			f: targetCommand("use", inRoom|inInventory, func(c *Connection, _ *structs.Player, room *structs.Room, obj *structs.Object) error {
				if lines := c.game.OnUse(c.ctx, obj, c.username, room.ID); len(lines) > 0 {
					c.print(lines)
				} else {
					fmt.Fprintln(c.term, "Nothing happens.")
				}
				return nil
			}),
		},
		{
			names: m("poke"),
			f: targetCommand("poke", inRoom|inInventory, func(c *Connection, _ *structs.Player, room *structs.Room, obj *structs.Object) error {
				if lines := c.game.OnPoke(c.ctx, obj, c.username, room.ID); len(lines) > 0 {
					c.print(lines)
				} else {
					fmt.Fprintf(c.term, "You poke %s.\n", lang.Indef(obj.Name))
				}
				return nil
			}),
		},
		{
			names: m("go"),
			f: func(c *Connection, line string) error {
				parts := whitespacePattern.Split(strings.TrimSpace(line), -1)
				if len(parts) != 2 {
					fmt.Fprintln(c.term, "Go where?")
					return nil
				}
				exit := parts[1]
				if full, found := directionAliases[exit]; found {
					exit = full
				}
				return c.move(exit)
			},
		},
		{
			names: m("i", "inv", "inventory"),
			f: func(c *Connection, _ string) error {
				player, _, err := c.load()
				if err != nil {
					return meshmush.WithStack(err)
				}
				objects, err := c.game.storage.LoadObjects(c.ctx, player.Inventory)
				if err != nil {
					return meshmush.WithStack(err)
				}
				if len(objects) == 0 {
					fmt.Fprintln(c.term, "You are carrying nothing.")
				} else {
					names := make([]string, len(objects))
					for idx, obj := range objects {
						names[idx] = lang.Indef(obj.Name)
					}
					fmt.Fprintf(c.term, "You are carrying %s.\n", lang.Enumerator{}.Do(names...))
				}
				fmt.Fprintf(c.term, "Health: %d/%d\n", player.Health, player.MaxHealth)
				return nil
			},
		},
		{
			names: m("quit"),
			f: func(c *Connection, _ string) error {
				fmt.Fprintln(c.term, "Farewell!")
				return errQuit
			},
		},
		{
			names: m("help"),
			f: func(c *Connection, _ string) error {
				fmt.Fprintln(c.term, "Try [look], [look <thing>], [take <thing>], [drop <thing>], [use <thing>], [poke <thing>], [go <exit>], [inventory] or [quit].")
				if c.wiz {
					fmt.Fprintln(c.term, "Wizards also have [/trigger help] and [/script help].")
				}
				return nil
			},
		},
	}
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	// directionAliases maps short direction commands to their full exit names
	directionAliases = map[string]string{
		"n":  "north",
		"s":  "south",
		"e":  "east",
		"w":  "west",
		"ne": "northeast",
		"nw": "northwest",
		"se": "southeast",
		"sw": "southwest",
		"u":  "up",
		"d":  "down",
	}
)

// exitAttempter treats a bare exit name, or its alias, as a go command.
type exitAttempter struct{}

func (exitAttempter) attempt(c *Connection, name string, _ string) (bool, error) {
	if full, found := directionAliases[name]; found {
		name = full
	}
	_, room, err := c.load()
	if err != nil {
		return false, meshmush.WithStack(err)
	}
	if _, found := room.Exits[name]; !found {
		return false, nil
	}
	return true, c.move(name)
}

func (c *Connection) Process() error {
	commandSets := []attempter{c.basicCommands(), exitAttempter{}}
	if c.wiz {
		commandSets = append([]attempter{c.wizCommands()}, commandSets...)
	}

	for {
		// Show wizards when the kill switch is off
		if c.wiz {
			if c.game.limiter.IsGloballyEnabled() {
				c.term.SetPrompt("> ")
			} else {
				c.term.SetPrompt("[off]> ")
			}
		}

		line, err := c.term.ReadLine()
		if err != nil {
			return meshmush.WithStack(err)
		}
		words := whitespacePattern.Split(strings.TrimSpace(line), -1)
		if len(words) == 0 || words[0] == "" {
			continue
		}
		handled := false
		for _, commands := range commandSets {
			if found, err := commands.attempt(c, words[0], line); errors.Is(err, errQuit) {
				return err
			} else if err != nil {
				fmt.Fprintln(c.term, err)
				handled = true
				break
			} else if found {
				handled = true
				break
			}
		}
		if !handled {
			fmt.Fprintf(c.term, "Unknown command: %q\n", words[0])
		}
	}
}

func (c *Connection) Connect() error {
	// Generate session ID at connection start so all audit events can be correlated
	c.ctx = storage.SetSessionID(c.ctx, meshmush.NextUniqueID())
	c.username = c.sess.User()
	if err := validateUsername(c.username); err != nil {
		fmt.Fprintln(c.term, err.Error())
		return errQuit
	}
	player, created, err := c.game.storage.EnsurePlayer(c.ctx, c.username, c.game.spawnRoom)
	if err != nil {
		return meshmush.WithStack(err)
	}
	c.wiz = c.game.isWizard(player)
	if created {
		c.game.storage.Audit(c.ctx, "PLAYER_CREATE", storage.AuditPlayerCreate{
			Player: storage.Ref(player.Username),
			Remote: c.sess.RemoteAddr().String(),
		})
		fmt.Fprintf(c.term, "Welcome %s!\n\n", player.Name())
	} else {
		fmt.Fprintf(c.term, "Welcome back, %s!\n\n", player.Name())
	}
	if err := c.enterRoom(); err != nil {
		return meshmush.WithStack(err)
	}
	return c.Process()
}
