package engine

import (
	"log/slog"

	"github.com/roach88/ruleware/internal/ir"
)

// Evaluation describes rule selection for one dispatched action.
type Evaluation struct {
	Action ir.Action

	// TypeMatched holds the types of rules whose ActionTypes contain
	// Action.Type, in declaration order.
	TypeMatched []string

	// Fired holds the subset of TypeMatched whose condition held.
	Fired []string
}

// Skipped returns the rule types that matched the action type but whose
// condition was false.
func (ev Evaluation) Skipped() []string {
	var out []string
	j := 0
	for _, t := range ev.TypeMatched {
		if j < len(ev.Fired) && ev.Fired[j] == t {
			j++
			continue
		}
		out = append(out, t)
	}
	return out
}

// Observer is notified once per dispatch, after selection and before any
// reaction runs.
type Observer interface {
	Evaluated(ev Evaluation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Evaluation)

// Evaluated calls f(ev).
func (f ObserverFunc) Evaluated(ev Evaluation) { f(ev) }

// Option configures an Engine.
type Option[S any] func(*Engine[S])

// WithObserver adds an observer. May be given more than once; observers
// are called in the order they were added.
func WithObserver[S any](o Observer) Option[S] {
	return func(e *Engine[S]) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithLogger sets the logger used for debug output. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(e *Engine[S]) {
		if logger != nil {
			e.logger = logger
		}
	}
}
