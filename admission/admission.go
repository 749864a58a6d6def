// Package admission decides whether a trigger may run right now. It enforces
// the per-object execution window, the per-player cooldown, operator
// disables and the global kill switch.
package admission

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/meshmush"
)

const (
	ObjectLimit    = 100
	ObjectWindow   = time.Minute
	PlayerCooldown = time.Second
)

var (
	ErrGlobalDisabled      = errors.New("trigger system disabled")
	ErrTriggerDisabled     = errors.New("trigger disabled")
	ErrObjectLimitExceeded = errors.New("object rate limit exceeded")
	ErrPlayerCooldown      = errors.New("player cooldown")
)

// LimitError explains a rejection. Reason is one of the Err* sentinels, so
// errors.Is(err, ErrPlayerCooldown) works on any returned error.
type LimitError struct {
	Reason    error
	ObjectID  string
	PlayerID  string
	Limit     int
	Remaining time.Duration
}

func (e *LimitError) Unwrap() error {
	return e.Reason
}

func (e *LimitError) Error() string {
	switch e.Reason {
	case ErrGlobalDisabled:
		return "Trigger system is currently disabled by an administrator"
	case ErrTriggerDisabled:
		return fmt.Sprintf("Trigger for object %s has been disabled", e.ObjectID)
	case ErrObjectLimitExceeded:
		return fmt.Sprintf("Object %s has exceeded the rate limit of %d executions per minute", e.ObjectID, e.Limit)
	case ErrPlayerCooldown:
		return fmt.Sprintf("Player %s must wait %d seconds before triggering again", e.PlayerID, int(math.Ceil(e.Remaining.Seconds())))
	}
	return fmt.Sprintf("rate limited: %v", e.Reason)
}

type window struct {
	count int
	start time.Time
	last  time.Time
}

func (w *window) expired(now time.Time) bool {
	return now.Sub(w.start) >= ObjectWindow
}

type Option func(*Controller)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller is safe for concurrent use. Create one per server and hand it
// to everything that runs triggers.
type Controller struct {
	mu            sync.RWMutex
	now           func() time.Time
	objects       map[string]*window
	players       map[string]time.Time
	globalEnabled bool
	disabled      *meshmush.SyncMap[string, time.Time]
}

func New(opts ...Option) *Controller {
	c := &Controller{
		now:           time.Now,
		objects:       map[string]*window{},
		players:       map[string]time.Time{},
		globalEnabled: true,
		disabled:      meshmush.NewSyncMap[string, time.Time](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckObject runs the object level checks: kill switch, disabled set and
// execution window, in that order.
func (c *Controller) CheckObject(objectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkObject(objectID, c.now())
}

func (c *Controller) checkObject(objectID string, now time.Time) error {
	if !c.globalEnabled {
		return &LimitError{Reason: ErrGlobalDisabled, ObjectID: objectID}
	}
	if c.disabled.Has(objectID) {
		return &LimitError{Reason: ErrTriggerDisabled, ObjectID: objectID}
	}
	w, found := c.objects[objectID]
	if !found {
		w = &window{start: now}
		c.objects[objectID] = w
	} else if w.expired(now) {
		w.count = 0
		w.start = now
	}
	if w.count >= ObjectLimit {
		return &LimitError{Reason: ErrObjectLimitExceeded, ObjectID: objectID, Limit: ObjectLimit}
	}
	return nil
}

// CheckAllowed runs CheckObject followed by the player cooldown check.
func (c *Controller) CheckAllowed(objectID string, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if err := c.checkObject(objectID, now); err != nil {
		return err
	}
	last, found := c.players[playerID]
	if !found {
		// The zero time never blocks and is pruned like any stale entry.
		c.players[playerID] = time.Time{}
		return nil
	}
	if since := now.Sub(last); since < PlayerCooldown {
		return &LimitError{Reason: ErrPlayerCooldown, ObjectID: objectID, PlayerID: playerID, Remaining: PlayerCooldown - since}
	}
	return nil
}

// RecordExecution counts one execution of objectID triggered by playerID.
func (c *Controller) RecordExecution(objectID string, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, found := c.objects[objectID]
	if !found || w.expired(now) {
		w = &window{start: now}
		c.objects[objectID] = w
	}
	w.count++
	w.last = now
	c.players[playerID] = now
}

func (c *Controller) DisableObject(objectID string) {
	c.disabled.Set(objectID, c.now())
}

// EnableObject re-enables objectID and reports whether it was disabled.
func (c *Controller) EnableObject(objectID string) bool {
	return c.disabled.Del(objectID)
}

func (c *Controller) IsObjectDisabled(objectID string) bool {
	return c.disabled.Has(objectID)
}

type DisabledObject struct {
	ObjectID   string
	DisabledAt time.Time
}

// DisabledObjects returns the disabled set ordered by object id.
func (c *Controller) DisabledObjects() []DisabledObject {
	result := []DisabledObject{}
	for id, at := range c.disabled.Each() {
		result = append(result, DisabledObject{ObjectID: id, DisabledAt: at})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ObjectID < result[j].ObjectID
	})
	return result
}

func (c *Controller) SetGlobalEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalEnabled = enabled
}

func (c *Controller) IsGloballyEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.globalEnabled
}

type Stats struct {
	TrackedObjects  int
	TrackedPlayers  int
	DisabledObjects int
	GloballyEnabled bool
}

func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		TrackedObjects:  len(c.objects),
		TrackedPlayers:  len(c.players),
		DisabledObjects: c.disabled.Len(),
		GloballyEnabled: c.globalEnabled,
	}
}

// ClearAll forgets all windows, cooldowns and disables. The kill switch is left as is.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects = map[string]*window{}
	c.players = map[string]time.Time{}
	c.disabled.Clear()
}

// Prune drops windows and cooldowns that no longer affect any decision and
// returns how many entries were removed.
func (c *Controller) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, w := range c.objects {
		if w.expired(now) {
			delete(c.objects, id)
			removed++
		}
	}
	for id, last := range c.players {
		if now.Sub(last) >= PlayerCooldown {
			delete(c.players, id)
			removed++
		}
	}
	return removed
}

// RunPruneLoop calls Prune every interval until ctx is cancelled.
func (c *Controller) RunPruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}
