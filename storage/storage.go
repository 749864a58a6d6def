package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/structs"

	goccy "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const (
	playersTable = "players"
	roomsTable   = "rooms"
	objectsTable = "objects"

	DefaultHealth = 100
)

var schema = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"CREATE TABLE IF NOT EXISTS players (id TEXT PRIMARY KEY, data TEXT NOT NULL)",
	"CREATE TABLE IF NOT EXISTS rooms (id TEXT PRIMARY KEY, data TEXT NOT NULL)",
	"CREATE TABLE IF NOT EXISTS objects (id TEXT PRIMARY KEY, data TEXT NOT NULL)",
}

type Options struct {
	Dir string
	// AuditLog defaults to audit.log inside Dir.
	AuditLog       string
	AuditMaxSizeMB int
}

// Storage persists the world as JSON documents in SQLite. All builtin
// mutations run in their own transaction.
type Storage struct {
	db    *sqlx.DB
	audit *AuditLogger
}

func New(ctx context.Context, dir string) (*Storage, error) {
	return Open(ctx, Options{Dir: dir})
}

func Open(ctx context.Context, opts Options) (*Storage, error) {
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, meshmush.WithStack(err)
	}
	db, err := sqlx.Open("sqlite", filepath.Join(opts.Dir, "world.sqlite"))
	if err != nil {
		return nil, meshmush.WithStack(err)
	}
	// SQLite serializes writers anyway, and one connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "executing %q", stmt)
		}
	}
	auditPath := opts.AuditLog
	if auditPath == "" {
		auditPath = filepath.Join(opts.Dir, "audit.log")
	}
	return &Storage{
		db:    db,
		audit: NewAuditLogger(auditPath, opts.AuditMaxSizeMB),
	}, nil
}

func (s *Storage) Close() error {
	if err := s.audit.Close(); err != nil {
		log.Printf("closing audit log: %v", err)
	}
	return meshmush.WithStack(s.db.Close())
}

// Audit records an operator event in the audit log.
func (s *Storage) Audit(ctx context.Context, event string, data AuditData) {
	s.audit.Log(ctx, event, data)
}

type document struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

func get[T any](ctx context.Context, q sqlx.QueryerContext, table string, id string) (*T, error) {
	doc := document{}
	if err := sqlx.GetContext(ctx, q, &doc, fmt.Sprintf("SELECT id, data FROM %s WHERE id = ?", table), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(os.ErrNotExist, "%s %q", table, id)
		}
		return nil, meshmush.WithStack(err)
	}
	result := new(T)
	if err := goccy.Unmarshal([]byte(doc.Data), result); err != nil {
		return nil, errors.Wrapf(err, "decoding %s %q", table, id)
	}
	return result, nil
}

func set[T any](ctx context.Context, e sqlx.ExecerContext, table string, id string, v *T) error {
	b, err := goccy.Marshal(v)
	if err != nil {
		return meshmush.WithStack(err)
	}
	if _, err := e.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data", table), id, string(b)); err != nil {
		return meshmush.WithStack(err)
	}
	return nil
}

func each[T any](ctx context.Context, q sqlx.QueryerContext, table string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		docs := []document{}
		if err := sqlx.SelectContext(ctx, q, &docs, fmt.Sprintf("SELECT id, data FROM %s ORDER BY id", table)); err != nil {
			yield(nil, meshmush.WithStack(err))
			return
		}
		for _, doc := range docs {
			result := new(T)
			if err := goccy.Unmarshal([]byte(doc.Data), result); err != nil {
				if !yield(nil, errors.Wrapf(err, "decoding %s %q", table, doc.ID)) {
					return
				}
				continue
			}
			if !yield(result, nil) {
				return
			}
		}
	}
}

func (s *Storage) update(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return meshmush.WithStack(err)
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("rolling back: %v", rbErr)
		}
		return err
	}
	return meshmush.WithStack(tx.Commit())
}

func (s *Storage) GetPlayer(ctx context.Context, username string) (*structs.Player, error) {
	return get[structs.Player](ctx, s.db, playersTable, username)
}

func (s *Storage) SetPlayer(ctx context.Context, p *structs.Player) error {
	return set(ctx, s.db, playersTable, p.Username, p)
}

func (s *Storage) EachPlayer(ctx context.Context) iter.Seq2[*structs.Player, error] {
	return each[structs.Player](ctx, s.db, playersTable)
}

// EnsurePlayer loads username, creating it in spawnRoom if it doesn't exist.
func (s *Storage) EnsurePlayer(ctx context.Context, username string, spawnRoom string) (player *structs.Player, created bool, err error) {
	err = s.update(ctx, func(tx *sqlx.Tx) error {
		var err error
		if player, err = get[structs.Player](ctx, tx, playersTable, username); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		player = &structs.Player{
			Username:  username,
			Room:      spawnRoom,
			Health:    DefaultHealth,
			MaxHealth: DefaultHealth,
			CreatedAt: time.Now().UTC(),
		}
		created = true
		return set(ctx, tx, playersTable, username, player)
	})
	return player, created, err
}

func (s *Storage) GetRoom(ctx context.Context, id string) (*structs.Room, error) {
	return get[structs.Room](ctx, s.db, roomsTable, id)
}

func (s *Storage) SetRoom(ctx context.Context, r *structs.Room) error {
	return set(ctx, s.db, roomsTable, r.ID, r)
}

func (s *Storage) EachRoom(ctx context.Context) iter.Seq2[*structs.Room, error] {
	return each[structs.Room](ctx, s.db, roomsTable)
}

func (s *Storage) GetObject(ctx context.Context, id string) (*structs.Object, error) {
	return get[structs.Object](ctx, s.db, objectsTable, id)
}

func (s *Storage) SetObject(ctx context.Context, o *structs.Object) error {
	return set(ctx, s.db, objectsTable, o.ID, o)
}

func (s *Storage) EachObject(ctx context.Context) iter.Seq2[*structs.Object, error] {
	return each[structs.Object](ctx, s.db, objectsTable)
}

// LoadObjects loads ids in order, skipping (and logging) ids without a record.
func (s *Storage) LoadObjects(ctx context.Context, ids []string) ([]*structs.Object, error) {
	result := make([]*structs.Object, 0, len(ids))
	for _, id := range ids {
		obj, err := s.GetObject(ctx, id)
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("dangling object reference %q", id)
			continue
		} else if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	return result, nil
}

// SetObjectScript replaces the script for kind, an empty script removes it.
func (s *Storage) SetObjectScript(ctx context.Context, objectID string, kind structs.TriggerKind, script string) error {
	return s.update(ctx, func(tx *sqlx.Tx) error {
		obj, err := get[structs.Object](ctx, tx, objectsTable, objectID)
		if err != nil {
			return err
		}
		obj.SetScript(kind, script)
		return set(ctx, tx, objectsTable, obj.ID, obj)
	})
}

func (s *Storage) HealPlayer(ctx context.Context, username string, amount int) (healed int, err error) {
	err = s.update(ctx, func(tx *sqlx.Tx) error {
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil {
			return err
		}
		if amount <= 0 || player.Health >= player.MaxHealth {
			return nil
		}
		healed = min(amount, player.MaxHealth-player.Health)
		player.Health += healed
		return set(ctx, tx, playersTable, username, player)
	})
	return healed, err
}

func (s *Storage) MovePlayer(ctx context.Context, username string, roomID string) error {
	return s.update(ctx, func(tx *sqlx.Tx) error {
		if _, err := get[structs.Room](ctx, tx, roomsTable, roomID); err != nil {
			return err
		}
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil {
			return err
		}
		player.Room = roomID
		return set(ctx, tx, playersTable, username, player)
	})
}

func (s *Storage) ConsumeObject(ctx context.Context, objectID string, username string, roomID string) (removed bool, err error) {
	err = s.update(ctx, func(tx *sqlx.Tx) error {
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if player != nil {
			if player.Inventory, removed = structs.Without(player.Inventory, objectID); removed {
				return set(ctx, tx, playersTable, username, player)
			}
		}
		room, err := get[structs.Room](ctx, tx, roomsTable, roomID)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}
		if room.Items, removed = structs.Without(room.Items, objectID); removed {
			return set(ctx, tx, roomsTable, roomID, room)
		}
		return nil
	})
	return removed, err
}

func (s *Storage) GrantItem(ctx context.Context, username string, objectID string) error {
	return s.update(ctx, func(tx *sqlx.Tx) error {
		if _, err := get[structs.Object](ctx, tx, objectsTable, objectID); err != nil {
			return err
		}
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil {
			return err
		}
		player.Inventory = append(player.Inventory, objectID)
		return set(ctx, tx, playersTable, username, player)
	})
}

// SetExitLocked locks or unlocks an existing exit of roomID and reports
// whether the lock state changed.
func (s *Storage) SetExitLocked(ctx context.Context, roomID string, exit string, locked bool) (changed bool, err error) {
	err = s.update(ctx, func(tx *sqlx.Tx) error {
		room, err := get[structs.Room](ctx, tx, roomsTable, roomID)
		if err != nil {
			return err
		}
		if _, found := room.Exits[exit]; !found {
			return errors.Wrapf(os.ErrNotExist, "exit %q in %q", exit, roomID)
		}
		if room.IsLocked(exit) == locked {
			return nil
		}
		if locked {
			room.LockedExits = append(room.LockedExits, exit)
		} else {
			room.LockedExits, _ = structs.Without(room.LockedExits, exit)
		}
		changed = true
		return set(ctx, tx, roomsTable, roomID, room)
	})
	return changed, err
}

// TakeObject moves objectID from the player's current room into their inventory.
func (s *Storage) TakeObject(ctx context.Context, username string, objectID string) error {
	return s.update(ctx, func(tx *sqlx.Tx) error {
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil {
			return err
		}
		room, err := get[structs.Room](ctx, tx, roomsTable, player.Room)
		if err != nil {
			return err
		}
		var found bool
		if room.Items, found = structs.Without(room.Items, objectID); !found {
			return errors.Wrapf(os.ErrNotExist, "object %q in room %q", objectID, room.ID)
		}
		player.Inventory = append(player.Inventory, objectID)
		if err := set(ctx, tx, roomsTable, room.ID, room); err != nil {
			return err
		}
		return set(ctx, tx, playersTable, username, player)
	})
}

// DropObject moves objectID from the player's inventory into their current room.
func (s *Storage) DropObject(ctx context.Context, username string, objectID string) error {
	return s.update(ctx, func(tx *sqlx.Tx) error {
		player, err := get[structs.Player](ctx, tx, playersTable, username)
		if err != nil {
			return err
		}
		var found bool
		if player.Inventory, found = structs.Without(player.Inventory, objectID); !found {
			return errors.Wrapf(os.ErrNotExist, "object %q in inventory of %q", objectID, username)
		}
		room, err := get[structs.Room](ctx, tx, roomsTable, player.Room)
		if err != nil {
			return err
		}
		if !slices.Contains(room.Items, objectID) {
			room.Items = append(room.Items, objectID)
		}
		if err := set(ctx, tx, roomsTable, room.ID, room); err != nil {
			return err
		}
		return set(ctx, tx, playersTable, username, player)
	})
}
