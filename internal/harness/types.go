package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// Trace event kinds.
const (
	EventDispatch  = "dispatch"
	EventFired     = "fired"
	EventCompleted = "completed"
)

// TraceEvent is one journal record, flattened for assertions and golden
// comparison. Action is the action type of the dispatch the record
// belongs to.
type TraceEvent struct {
	Kind     string      `json:"kind"`
	Seq      int64       `json:"seq"`
	Action   string      `json:"action"`
	Depth    int         `json:"depth"`
	Payload  ir.IRObject `json:"payload,omitempty"`
	Rule     string      `json:"rule,omitempty"`
	Position int         `json:"position,omitempty"`
}

// String renders the event as one timeline line, indented by depth.
func (ev TraceEvent) String() string {
	indent := strings.Repeat("  ", ev.Depth)
	switch ev.Kind {
	case EventDispatch:
		if len(ev.Payload) == 0 {
			return fmt.Sprintf("[%d] %s%s", ev.Seq, indent, ev.Action)
		}
		return fmt.Sprintf("[%d] %s%s %s", ev.Seq, indent, ev.Action, ir.String(ev.Payload))
	case EventFired:
		return fmt.Sprintf("[%d] %s  fired %s (#%d)", ev.Seq, indent, ev.Rule, ev.Position)
	default:
		return fmt.Sprintf("[%d] %s  done %s", ev.Seq, indent, ev.Action)
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step and no assertion failed.
	Pass bool `json:"pass"`

	// Token is the journal token every root dispatch was recorded under.
	Token string `json:"token"`

	// Trace is the journal in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the container state after the last step.
	State ir.IRObject `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  ir.IRObject{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Dispatches returns the dispatch events only.
func (r *Result) Dispatches() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Kind == EventDispatch {
			out = append(out, ev)
		}
	}
	return out
}
