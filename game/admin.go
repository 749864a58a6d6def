package game

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rodaine/table"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/admission"
	"github.com/zond/meshmush/lang"
	"github.com/zond/meshmush/storage"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

const (
	objectNameTTL      = 5 * time.Minute
	objectNameCacheMax = 1024
	disabledAtFormat   = "2006-01-02 15:04:05"
	statsTopObjects    = 10
	statsRecent        = 5
)

// Admin is the operator surface of the trigger system. Every state change is audited.
type Admin struct {
	storage *storage.Storage
	limiter *admission.Controller
	stats   *TriggerStats
	names   cache.Cache[string, string]
}

func NewAdmin(s *storage.Storage, limiter *admission.Controller, stats *TriggerStats) *Admin {
	return &Admin{
		storage: s,
		limiter: limiter,
		stats:   stats,
		names:   cache.NewCache[string, string]().WithTTL(objectNameTTL).WithMaxKeys(objectNameCacheMax),
	}
}

// Disable stops all scripts of objectID, which must exist.
func (a *Admin) Disable(ctx context.Context, caller storage.AuditRef, objectID string) error {
	obj, err := a.storage.GetObject(ctx, objectID)
	if err != nil {
		return meshmush.WithStack(err)
	}
	a.names.Set(obj.ID, obj.Name, 0)
	a.limiter.DisableObject(obj.ID)
	a.storage.Audit(ctx, "TRIGGER_DISABLE", storage.AuditTriggerDisable{
		Caller: caller,
		Object: obj.ID,
	})
	return nil
}

// Enable re-enables objectID and reports whether it was disabled.
func (a *Admin) Enable(ctx context.Context, caller storage.AuditRef, objectID string) bool {
	wasDisabled := a.limiter.EnableObject(objectID)
	a.storage.Audit(ctx, "TRIGGER_ENABLE", storage.AuditTriggerEnable{
		Caller:      caller,
		Object:      objectID,
		WasDisabled: wasDisabled,
	})
	return wasDisabled
}

func (a *Admin) SetGlobal(ctx context.Context, caller storage.AuditRef, enabled bool) {
	a.limiter.SetGlobalEnabled(enabled)
	a.storage.Audit(ctx, "TRIGGER_GLOBAL", storage.AuditTriggerGlobal{
		Caller:  caller,
		Enabled: enabled,
	})
}

// Clear forgets all rate limit state, disables and execution statistics.
func (a *Admin) Clear(ctx context.Context, caller storage.AuditRef) {
	a.limiter.ClearAll()
	a.stats.Reset()
	a.storage.Audit(ctx, "TRIGGER_CLEAR", storage.AuditTriggerClear{
		Caller: caller,
	})
}

// objectName returns the display name of id, or id itself if it can't be loaded.
func (a *Admin) objectName(ctx context.Context, id string) string {
	if name, found := a.names.Get(id); found {
		return name
	}
	obj, err := a.storage.GetObject(ctx, id)
	if err != nil {
		return id
	}
	a.names.Set(id, obj.Name, 0)
	return obj.Name
}

func (a *Admin) label(ctx context.Context, id string) string {
	if name := a.objectName(ctx, id); name != id {
		return fmt.Sprintf("%s [%s]", name, id)
	}
	return id
}

// WriteDisabled lists the disabled objects with their names and disable times.
func (a *Admin) WriteDisabled(ctx context.Context, w io.Writer) {
	disabled := a.limiter.DisabledObjects()
	if len(disabled) == 0 {
		fmt.Fprintln(w, "No disabled objects.")
		return
	}
	for _, d := range disabled {
		fmt.Fprintf(w, "  - %s (disabled at %s)\n", a.label(ctx, d.ObjectID), d.DisabledAt.Format(disabledAtFormat))
	}
}

// FormatStats writes the operator report of admission and execution state.
func (a *Admin) FormatStats(ctx context.Context, w io.Writer) {
	stats := a.limiter.Stats()
	status := "ENABLED"
	if !stats.GloballyEnabled {
		status = "DISABLED"
	}
	fmt.Fprintln(w, "=== Trigger System Statistics ===")
	fmt.Fprintf(w, "Global Status: %s\n", status)
	fmt.Fprintf(w, "Tracked Objects: %d\n", stats.TrackedObjects)
	fmt.Fprintf(w, "Tracked Players: %d\n", stats.TrackedPlayers)
	fmt.Fprintf(w, "Disabled Objects: %d\n", stats.DisabledObjects)
	if stats.DisabledObjects > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Disabled Objects:")
		a.WriteDisabled(ctx, w)
	}

	snap := a.stats.Snapshot()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s (%d slow) in %s\n", lang.Capitalize(lang.Count(int(snap.Total), "execution")), snap.Slow, snap.Uptime.Round(time.Second))
	if snap.Total == 0 && len(snap.ByResult) == 0 {
		return
	}
	t := table.New("Result", "Count").WithWriter(w)
	for _, kind := range []trigger.ResultKind{trigger.Success, trigger.Skipped, trigger.Failed, trigger.TimedOut, trigger.RateLimited} {
		if n := snap.ByResult[kind]; n > 0 {
			t.AddRow(kind.String(), n)
		}
	}
	t.Print()

	fmt.Fprintln(w)
	t = table.New("Trigger", "Count").WithWriter(w)
	for _, kind := range structs.TriggerKinds() {
		if n := snap.ByKind[kind]; n > 0 {
			t.AddRow(kind.String(), n)
		}
	}
	t.Print()

	if top := a.stats.TopObjects(statsTopObjects); len(top) > 0 {
		fmt.Fprintln(w)
		t = table.New("Object", "Execs", "Avg(ms)", "Max(ms)", "Fails", "Limited").WithWriter(w)
		for _, obj := range top {
			t.AddRow(a.label(ctx, obj.ObjectID), obj.Executions,
				fmt.Sprintf("%.2f", float64(obj.AvgTime().Microseconds())/1000),
				fmt.Sprintf("%.2f", float64(obj.MaxTime.Microseconds())/1000),
				obj.Failures+obj.TimedOut, obj.RateLimited)
		}
		t.Print()
	}

	if recent := a.stats.Recent(statsRecent); len(recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent problems:")
		for _, rec := range recent {
			fmt.Fprintf(w, "[%s] %s %s %s: %s\n",
				rec.Timestamp.Format("15:04:05"),
				a.label(ctx, rec.ObjectID),
				rec.Kind,
				rec.Result,
				rec.Reason)
		}
	}
}
