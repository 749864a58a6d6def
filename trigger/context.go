package trigger

import (
	"time"

	"github.com/zond/meshmush/structs"
)

const (
	MaxExecutionTime = 100 * time.Millisecond
	MaxActions       = 10
	MaxMessages      = 3
	MaxDepth         = 5
	MaxScriptLength  = 512
)

// ExecContext is the per-execution state of one script run. It is created
// for a single Execute call and discarded afterwards.
type ExecContext struct {
	PlayerName  string
	DisplayName string
	ObjectID    string
	ObjectName  string
	RoomID      string
	RoomName    string

	StartedAt    time.Time
	ActionCount  int
	MessageCount int
	Depth        int

	// Snapshots read by condition builtins. Any of them may be nil.
	Player *structs.Player
	Object *structs.Object
	Room   *structs.Room
}

// NewExecContext builds a context from record snapshots and starts its clock.
func NewExecContext(player *structs.Player, object *structs.Object, room *structs.Room) *ExecContext {
	ec := &ExecContext{
		StartedAt: time.Now(),
		Player:    player,
		Object:    object,
		Room:      room,
	}
	if player != nil {
		ec.PlayerName = player.Username
		ec.DisplayName = player.Name()
	}
	if object != nil {
		ec.ObjectID = object.ID
		ec.ObjectName = object.Name
	}
	if room != nil {
		ec.RoomID = room.ID
		ec.RoomName = room.Name
	}
	return ec
}

func (c *ExecContext) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}

func (c *ExecContext) IsTimedOut() bool {
	return c.Elapsed() > MaxExecutionTime
}

func (c *ExecContext) CanExecuteAction() bool {
	return c.ActionCount < MaxActions
}

func (c *ExecContext) CanSendMessage() bool {
	return c.MessageCount < MaxMessages
}

func (c *ExecContext) CanNestDeeper() bool {
	return c.Depth < MaxDepth
}

func (c *ExecContext) IncrementAction() {
	c.ActionCount++
}

func (c *ExecContext) IncrementMessage() {
	c.MessageCount++
}

func (c *ExecContext) IncrementDepth() {
	c.Depth++
}

func (c *ExecContext) DecrementDepth() {
	if c.Depth > 0 {
		c.Depth--
	}
}
