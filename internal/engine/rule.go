package engine

import "github.com/roach88/ruleware/internal/ir"

// Dispatcher continues (or starts) dispatching an action and returns the
// result of the rest of the pipeline.
type Dispatcher func(action ir.Action) any

// Store is the capability a host state container hands to middleware.
type Store[S any] interface {
	GetState() S
	Dispatch(action ir.Action) any
}

// Middleware wraps the continuation next for a single action. It may call
// next zero or one times, before or after its own effects, and returns
// what the dispatch caller should see.
type Middleware[S any] func(store Store[S], action ir.Action, next Dispatcher) any

// Facts is the snapshot a condition is evaluated against.
type Facts[S any] struct {
	State  S
	Action ir.Action
}

// Condition is a pure predicate over facts.
type Condition[S any] func(facts Facts[S]) bool

// Reaction runs when its rule matches. It has the Middleware shape.
type Reaction[S any] = Middleware[S]

// Rule is one declarative unit: which actions it listens to, when it
// applies, and what it does.
type Rule[S any] struct {
	// Type names the rule in errors, logs and journals. Not an operational key.
	Type string

	// ActionTypes lists the action types the rule is eligible for.
	ActionTypes []string

	Condition Condition[S]
	Reaction  Reaction[S]
}

// listensTo reports whether actionType is one of the rule's action types.
func (r *Rule[S]) listensTo(actionType string) bool {
	for _, t := range r.ActionTypes {
		if t == actionType {
			return true
		}
	}
	return false
}

// missing returns the names of absent required properties, in check order.
func (r *Rule[S]) missing() []string {
	var fields []string
	if r.Type == "" {
		fields = append(fields, "type")
	}
	if r.ActionTypes == nil {
		fields = append(fields, "actionTypes")
	}
	if r.Condition == nil {
		fields = append(fields, "condition")
	}
	if r.Reaction == nil {
		fields = append(fields, "reaction")
	}
	return fields
}
