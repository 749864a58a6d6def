package trigger

import "fmt"

type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	UnknownFunction
	InvalidArgument
	ResourceLimitExceeded
	ExecutionTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case UnknownFunction:
		return "unknown function"
	case InvalidArgument:
		return "invalid argument"
	case ResourceLimitExceeded:
		return "resource limit exceeded"
	case ExecutionTimeout:
		return "execution timeout"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ScriptError is returned by every stage of the pipeline. Pos is a rune
// offset into the script, or -1 when the error has no source position.
type ScriptError struct {
	Kind ErrorKind
	Pos  int
	Msg  string
}

func (e *ScriptError) Error() string {
	switch e.Kind {
	case SyntaxError:
		// Positionless syntax errors are whole-script checks whose text stands alone.
		if e.Pos >= 0 {
			return fmt.Sprintf("Syntax error at position %d: %s", e.Pos, e.Msg)
		}
	case UnknownFunction:
		return fmt.Sprintf("Unknown function '%s' at position %d", e.Msg, e.Pos)
	}
	return e.Msg
}

func syntaxErrorf(pos int, format string, args ...any) *ScriptError {
	return &ScriptError{Kind: SyntaxError, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func argumentErrorf(format string, args ...any) *ScriptError {
	return &ScriptError{Kind: InvalidArgument, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func limitErrorf(format string, args ...any) *ScriptError {
	return &ScriptError{Kind: ResourceLimitExceeded, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func timeoutError() *ScriptError {
	return &ScriptError{
		Kind: ExecutionTimeout,
		Pos:  -1,
		Msg:  fmt.Sprintf("Script execution timed out (%dms limit)", MaxExecutionTime.Milliseconds()),
	}
}
