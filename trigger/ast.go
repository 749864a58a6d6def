package trigger

// Node is a parsed expression.
type Node interface {
	node()
}

type CallNode struct {
	Builtin Builtin
	Args    []Node
	At      int
}

type AndNode struct {
	Left  Node
	Right Node
}

type OrNode struct {
	Left  Node
	Right Node
}

type TernaryNode struct {
	Cond Node
	Then Node
	Else Node
}

type StringLit struct {
	Value string
	At    int
}

type NumberLit struct {
	Value int64
	At    int
}

type BoolLit struct {
	Value bool
	At    int
}

type VariableNode struct {
	Name Variable
	At   int
}

func (*CallNode) node()     {}
func (*AndNode) node()      {}
func (*OrNode) node()       {}
func (*TernaryNode) node()  {}
func (*StringLit) node()    {}
func (*NumberLit) node()    {}
func (*BoolLit) node()      {}
func (*VariableNode) node() {}

// Variable is one of the fixed names exposed by the execution context.
type Variable int

const (
	VarPlayer Variable = iota
	VarPlayerName
	VarObject
	VarObjectID
	VarRoom
	VarRoomID
)

var variableNames = map[string]Variable{
	"player":      VarPlayer,
	"player_name": VarPlayerName,
	"object":      VarObject,
	"object_id":   VarObjectID,
	"room":        VarRoom,
	"room_id":     VarRoomID,
}
