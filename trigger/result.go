package trigger

import (
	"fmt"
	"strings"
)

type ResultKind int

const (
	Success ResultKind = iota
	NoScript
	Skipped
	Failed
	TimedOut
	RateLimited
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case NoScript:
		return "no_script"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case RateLimited:
		return "rate_limited"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Result is the outcome of one trigger invocation. Messages is only set for
// Success, Reason for Failed and RateLimited.
type Result struct {
	Kind     ResultKind
	Messages []string
	Reason   string
}

func (r Result) String() string {
	switch r.Kind {
	case Success:
		return fmt.Sprintf("success[%s]", strings.Join(r.Messages, " | "))
	case Failed, RateLimited:
		return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
	}
	return r.Kind.String()
}
