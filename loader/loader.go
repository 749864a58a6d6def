// Package loader moves whole worlds between JSON seed files and storage.
package loader

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"

	goccy "github.com/goccy/go-json"
)

// World is the seed file format.
type World struct {
	Players []structs.Player
	Rooms   []structs.Room
	Objects []structs.Object
}

// InvalidScriptError names the script that stopped a restore.
type InvalidScriptError struct {
	ObjectID string
	Kind     string
	Err      error
}

func (e *InvalidScriptError) Error() string {
	return fmt.Sprintf("object %q script %s: %v", e.ObjectID, e.Kind, e.Err)
}

func (e *InvalidScriptError) Unwrap() error {
	return e.Err
}

// Validate checks every script in w and normalizes script keys, so "look"
// is stored as "on_look".
func (w *World) Validate() error {
	for i := range w.Objects {
		obj := &w.Objects[i]
		keys := make([]string, 0, len(obj.Scripts))
		for key := range obj.Scripts {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		scripts := obj.Scripts
		obj.Scripts = nil
		for _, key := range keys {
			kind, err := structs.ParseTriggerKind(key)
			if err != nil {
				return &InvalidScriptError{ObjectID: obj.ID, Kind: key, Err: err}
			}
			if scripts[key] == "" {
				continue
			}
			if err := trigger.Validate(scripts[key]); err != nil {
				return &InvalidScriptError{ObjectID: obj.ID, Kind: kind.String(), Err: err}
			}
			obj.SetScript(kind, scripts[key])
		}
	}
	return nil
}

// Restore decodes a world from r and stores every record in it. Nothing is
// stored unless every script validates.
func Restore(ctx context.Context, store *storage.Storage, r io.Reader) (*World, error) {
	w := &World{}
	if err := goccy.NewDecoder(r).Decode(w); err != nil {
		return nil, errors.Wrap(err, "decoding world")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	for i := range w.Rooms {
		if err := store.SetRoom(ctx, &w.Rooms[i]); err != nil {
			return nil, errors.Wrapf(err, "storing room %q", w.Rooms[i].ID)
		}
	}
	for i := range w.Objects {
		if err := store.SetObject(ctx, &w.Objects[i]); err != nil {
			return nil, errors.Wrapf(err, "storing object %q", w.Objects[i].ID)
		}
	}
	for i := range w.Players {
		if err := store.SetPlayer(ctx, &w.Players[i]); err != nil {
			return nil, errors.Wrapf(err, "storing player %q", w.Players[i].Username)
		}
	}
	return w, nil
}

// Backup writes every record in store to out, sorted by id.
func Backup(ctx context.Context, store *storage.Storage, out io.Writer) (*World, error) {
	w := &World{
		Players: []structs.Player{},
		Rooms:   []structs.Room{},
		Objects: []structs.Object{},
	}
	for p, err := range store.EachPlayer(ctx) {
		if err != nil {
			return nil, meshmush.WithStack(err)
		}
		w.Players = append(w.Players, *p)
	}
	for r, err := range store.EachRoom(ctx) {
		if err != nil {
			return nil, meshmush.WithStack(err)
		}
		w.Rooms = append(w.Rooms, *r)
	}
	for o, err := range store.EachObject(ctx) {
		if err != nil {
			return nil, meshmush.WithStack(err)
		}
		w.Objects = append(w.Objects, *o)
	}
	sort.Slice(w.Players, func(i, j int) bool { return w.Players[i].Username < w.Players[j].Username })
	sort.Slice(w.Rooms, func(i, j int) bool { return w.Rooms[i].ID < w.Rooms[j].ID })
	sort.Slice(w.Objects, func(i, j int) bool { return w.Objects[i].ID < w.Objects[j].ID })

	b, err := goccy.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding world")
	}
	if _, err := out.Write(b); err != nil {
		return nil, meshmush.WithStack(err)
	}
	return w, nil
}
