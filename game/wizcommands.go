package game

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"
)

// wizContext holds the context for /trigger and /script subcommand execution.
type wizContext struct {
	c     *Connection
	parts []string
	// rest is the unparsed remainder after the subcommand, scripts contain
	// quotes that shell splitting would eat.
	rest string
}

type wizHandler func(ctx *wizContext) error

type wizSubcommand struct {
	handler wizHandler
	usage   string
	help    string
}

var triggerSubcommands = map[string]wizSubcommand{
	"disable": {handler: handleTriggerDisable, usage: "disable <object>", help: "Stop all scripts of an object"},
	"enable":  {handler: handleTriggerEnable, usage: "enable <object>", help: "Re-enable the scripts of an object"},
	"list":    {handler: handleTriggerList, usage: "list", help: "List disabled objects"},
	"stats":   {handler: handleTriggerStats, usage: "stats", help: "Show admission and execution statistics"},
	"global":  {handler: handleTriggerGlobal, usage: "global on|off", help: "Turn the whole trigger system on or off"},
	"clear":   {handler: handleTriggerClear, usage: "clear", help: "Forget rate limits, disables and statistics"},
}

var scriptSubcommands = map[string]wizSubcommand{
	"show":  {handler: handleScriptShow, usage: "show <object>", help: "Show the scripts of an object"},
	"set":   {handler: handleScriptSet, usage: "set <object> <kind> <script>", help: "Validate and store a script"},
	"clear": {handler: handleScriptClear, usage: "clear <object> <kind>", help: "Remove a script"},
	"check": {handler: handleScriptCheck, usage: "check <script>", help: "Validate a script without storing it"},
}

var subcommandPattern = regexp.MustCompile(`^\s*\S+\s+(\S+)\s*(.*)$`)

func printWizHelp(w io.Writer, command string, subs map[string]wizSubcommand, order []string) {
	fmt.Fprintf(w, "usage: %s <subcommand>\n", command)
	t := table.New("Subcommand", "Description").WithWriter(w)
	for _, name := range order {
		t.AddRow(subs[name].usage, subs[name].help)
	}
	t.Print()
}

func wizDispatcher(command string, subs map[string]wizSubcommand, order []string) func(*Connection, string) error {
	return func(c *Connection, line string) error {
		match := subcommandPattern.FindStringSubmatch(line)
		if match == nil || match[1] == "help" {
			printWizHelp(c.term, command, subs, order)
			return nil
		}
		sub, found := subs[match[1]]
		if !found {
			fmt.Fprintf(c.term, "Unknown subcommand %q.\n", match[1])
			printWizHelp(c.term, command, subs, order)
			return nil
		}
		parts, err := shellwords.SplitPosix(match[2])
		if err != nil {
			parts = strings.Fields(match[2])
		}
		return sub.handler(&wizContext{c: c, parts: parts, rest: strings.TrimSpace(match[2])})
	}
}

func (c *Connection) wizCommands() commands {
	return []command{
		{
			names: m("/trigger"),
			f:     wizDispatcher("/trigger", triggerSubcommands, []string{"disable", "enable", "list", "stats", "global", "clear"}),
		},
		{
			names: m("/script"),
			f:     wizDispatcher("/script", scriptSubcommands, []string{"show", "set", "clear", "check"}),
		},
	}
}

func (ctx *wizContext) caller() storage.AuditRef {
	return storage.Ref(ctx.c.username)
}

// lookupObject finds an object by name near the wizard, or else by id
// anywhere. A missing object is not an error.
func (ctx *wizContext) lookupObject(name string) (*structs.Object, error) {
	player, room, err := ctx.c.load()
	if err != nil {
		return nil, meshmush.WithStack(err)
	}
	obj, err := ctx.c.findObject(player, room, inRoom|inInventory, name)
	if err != nil || obj != nil {
		return obj, err
	}
	obj, err = ctx.c.game.storage.GetObject(ctx.c.ctx, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return obj, err
}

func (ctx *wizContext) resolveObject(name string) (*structs.Object, error) {
	obj, err := ctx.lookupObject(name)
	if err == nil && obj == nil {
		fmt.Fprintf(ctx.c.term, "No object %q.\n", name)
	}
	return obj, err
}

func handleTriggerDisable(ctx *wizContext) error {
	if len(ctx.parts) != 1 {
		fmt.Fprintln(ctx.c.term, "usage: /trigger disable <object>")
		return nil
	}
	obj, err := ctx.resolveObject(ctx.parts[0])
	if err != nil || obj == nil {
		return err
	}
	if err := ctx.c.game.admin.Disable(ctx.c.ctx, ctx.caller(), obj.ID); err != nil {
		return meshmush.WithStack(err)
	}
	fmt.Fprintf(ctx.c.term, "Triggers on %s [%s] disabled.\n", obj.Name, obj.ID)
	return nil
}

func handleTriggerEnable(ctx *wizContext) error {
	if len(ctx.parts) != 1 {
		fmt.Fprintln(ctx.c.term, "usage: /trigger enable <object>")
		return nil
	}
	id := ctx.parts[0]
	if obj, err := ctx.lookupObject(id); err != nil {
		return err
	} else if obj != nil {
		id = obj.ID
	}
	if ctx.c.game.admin.Enable(ctx.c.ctx, ctx.caller(), id) {
		fmt.Fprintf(ctx.c.term, "Triggers on %s enabled.\n", id)
	} else {
		fmt.Fprintf(ctx.c.term, "Triggers on %s were not disabled.\n", id)
	}
	return nil
}

func handleTriggerList(ctx *wizContext) error {
	fmt.Fprintln(ctx.c.term, "Disabled Objects:")
	ctx.c.game.admin.WriteDisabled(ctx.c.ctx, ctx.c.term)
	return nil
}

func handleTriggerStats(ctx *wizContext) error {
	ctx.c.game.admin.FormatStats(ctx.c.ctx, ctx.c.term)
	return nil
}

func handleTriggerGlobal(ctx *wizContext) error {
	if len(ctx.parts) != 1 || (ctx.parts[0] != "on" && ctx.parts[0] != "off") {
		fmt.Fprintln(ctx.c.term, "usage: /trigger global on|off")
		return nil
	}
	enabled := ctx.parts[0] == "on"
	ctx.c.game.admin.SetGlobal(ctx.c.ctx, ctx.caller(), enabled)
	if enabled {
		fmt.Fprintln(ctx.c.term, "Trigger system ENABLED.")
	} else {
		fmt.Fprintln(ctx.c.term, "Trigger system DISABLED.")
	}
	return nil
}

func handleTriggerClear(ctx *wizContext) error {
	ctx.c.game.admin.Clear(ctx.c.ctx, ctx.caller())
	fmt.Fprintln(ctx.c.term, "Trigger state cleared.")
	return nil
}

func handleScriptShow(ctx *wizContext) error {
	if len(ctx.parts) != 1 {
		fmt.Fprintln(ctx.c.term, "usage: /script show <object>")
		return nil
	}
	obj, err := ctx.resolveObject(ctx.parts[0])
	if err != nil || obj == nil {
		return err
	}
	fmt.Fprintf(ctx.c.term, "%s [%s]\n", obj.Name, obj.ID)
	t := table.New("Kind", "Length", "Script").WithWriter(ctx.c.term)
	rows := 0
	for _, kind := range structs.TriggerKinds() {
		if script := obj.Script(kind); script != "" {
			t.AddRow(kind.String(), utf8.RuneCountInString(script), script)
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintln(ctx.c.term, "No scripts.")
		return nil
	}
	t.Print()
	return nil
}

var scriptSetPattern = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(.+)$`)

func handleScriptSet(ctx *wizContext) error {
	match := scriptSetPattern.FindStringSubmatch(ctx.rest)
	if match == nil {
		fmt.Fprintln(ctx.c.term, "usage: /script set <object> <kind> <script>")
		return nil
	}
	kind, err := structs.ParseTriggerKind(match[2])
	if err != nil {
		fmt.Fprintln(ctx.c.term, err.Error())
		return nil
	}
	script := match[3]
	if err := trigger.Validate(script); err != nil {
		fmt.Fprintf(ctx.c.term, "Invalid script: %v\n", err)
		return nil
	}
	obj, err := ctx.resolveObject(match[1])
	if err != nil || obj == nil {
		return err
	}
	return ctx.storeScript(obj, kind, script)
}

func handleScriptClear(ctx *wizContext) error {
	if len(ctx.parts) != 2 {
		fmt.Fprintln(ctx.c.term, "usage: /script clear <object> <kind>")
		return nil
	}
	kind, err := structs.ParseTriggerKind(ctx.parts[1])
	if err != nil {
		fmt.Fprintln(ctx.c.term, err.Error())
		return nil
	}
	obj, err := ctx.resolveObject(ctx.parts[0])
	if err != nil || obj == nil {
		return err
	}
	return ctx.storeScript(obj, kind, "")
}

func (ctx *wizContext) storeScript(obj *structs.Object, kind structs.TriggerKind, script string) error {
	if err := ctx.c.game.storage.SetObjectScript(ctx.c.ctx, obj.ID, kind, script); err != nil {
		return meshmush.WithStack(err)
	}
	ctx.c.game.storage.Audit(ctx.c.ctx, "SCRIPT_SET", storage.AuditScriptSet{
		Caller: ctx.caller(),
		Object: obj.ID,
		Kind:   kind.String(),
		Length: utf8.RuneCountInString(script),
	})
	if script == "" {
		fmt.Fprintf(ctx.c.term, "Removed %s script from %s [%s].\n", kind, obj.Name, obj.ID)
	} else {
		fmt.Fprintf(ctx.c.term, "Stored %s script on %s [%s].\n", kind, obj.Name, obj.ID)
	}
	return nil
}

func handleScriptCheck(ctx *wizContext) error {
	if ctx.rest == "" {
		fmt.Fprintln(ctx.c.term, "usage: /script check <script>")
		return nil
	}
	if err := trigger.Validate(ctx.rest); err != nil {
		fmt.Fprintf(ctx.c.term, "Invalid script: %v\n", err)
		return nil
	}
	fmt.Fprintf(ctx.c.term, "Script OK (%d/%d characters).\n", utf8.RuneCountInString(ctx.rest), trigger.MaxScriptLength)
	return nil
}
