package trigger

import (
	"context"
	"fmt"
	"strings"
)

type evaluator struct {
	ctx      context.Context
	ec       *ExecContext
	world    World
	randIntN func(int) int
	messages []string
}

func (e *evaluator) emit(text string) {
	e.messages = append(e.messages, text)
	e.ec.IncrementMessage()
}

func (e *evaluator) substitute(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	return strings.NewReplacer(
		"$player_name", e.ec.DisplayName,
		"$player", e.ec.PlayerName,
		"$object_id", e.ec.ObjectID,
		"$object", e.ec.ObjectName,
		"$room_id", e.ec.RoomID,
		"$room", e.ec.RoomName,
	).Replace(text)
}

func (e *evaluator) variable(v Variable) string {
	switch v {
	case VarPlayer:
		return e.ec.PlayerName
	case VarPlayerName:
		return e.ec.DisplayName
	case VarObject:
		return e.ec.ObjectName
	case VarObjectID:
		return e.ec.ObjectID
	case VarRoom:
		return e.ec.RoomName
	case VarRoomID:
		return e.ec.RoomID
	}
	return ""
}

// nested evaluates n one nesting level deeper.
func (e *evaluator) nested(n Node) (any, error) {
	if !e.ec.CanNestDeeper() {
		return nil, limitErrorf("Nesting depth limit reached (%d max)", MaxDepth)
	}
	e.ec.IncrementDepth()
	defer e.ec.DecrementDepth()
	return e.eval(n)
}

func (e *evaluator) eval(n Node) (any, error) {
	if e.ec.IsTimedOut() {
		return nil, timeoutError()
	}
	switch n := n.(type) {
	case *StringLit:
		return literal(n.Value), nil
	case *NumberLit:
		return n.Value, nil
	case *BoolLit:
		return n.Value, nil
	case *VariableNode:
		return e.variable(n.Name), nil
	case *AndNode:
		left, err := e.eval(n.Left)
		if err != nil || !truthy(left) {
			return false, err
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case *OrNode:
		left, err := e.eval(n.Left)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case *TernaryNode:
		cond, err := e.nested(n.Cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.nested(n.Then)
		}
		return e.nested(n.Else)
	case *CallNode:
		return e.call(n)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func (e *evaluator) call(n *CallNode) (any, error) {
	spec := builtins[n.Builtin]
	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		v, err := e.nested(arg)
		if err != nil {
			return nil, err
		}
		// Only text written in the script is expanded, never values produced by expansion.
		if l, ok := v.(literal); ok {
			if spec.substitutes {
				v = e.substitute(string(l))
			} else {
				v = string(l)
			}
		}
		args[i] = v
	}
	if !e.ec.CanExecuteAction() {
		return nil, limitErrorf("Action limit reached (%d max)", MaxActions)
	}
	return spec.run(e, args)
}
