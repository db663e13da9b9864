package engine

import (
	"log/slog"
	"slices"

	"github.com/roach88/ruleware/internal/ir"
)

// Engine selects and chains rule reactions for each dispatched action.
//
// INVARIANTS:
//   - rules slice order NEVER changes after construction
//   - rules are validated before the Engine exists; there is no partial state
//   - no field is written after New returns
type Engine[S any] struct {
	rules     []Rule[S]
	observers []Observer
	logger    *slog.Logger
}

// New validates rules in declaration order and returns an Engine.
//
// The rules slice is copied so later mutation by the caller cannot change
// selection order. The first malformed rule aborts construction with a
// *MalformedRuleError.
func New[S any](rules []Rule[S], opts ...Option[S]) (*Engine[S], error) {
	for i := range rules {
		if missing := rules[i].missing(); len(missing) > 0 {
			return nil, &MalformedRuleError{
				Index:   i,
				Type:    rules[i].Type,
				Missing: missing,
			}
		}
	}

	copied := make([]Rule[S], len(rules))
	copy(copied, rules)
	for i := range copied {
		copied[i].ActionTypes = slices.Clone(copied[i].ActionTypes)
	}

	e := &Engine[S]{
		rules:  copied,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustNew is like New but panics on a malformed rule.
func MustNew[S any](rules []Rule[S], opts ...Option[S]) *Engine[S] {
	e, err := New(rules, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns a copy of the registered rules in declaration order.
func (e *Engine[S]) Rules() []Rule[S] {
	out := make([]Rule[S], len(e.rules))
	copy(out, e.rules)
	return out
}

// Middleware returns the engine as a store middleware.
func (e *Engine[S]) Middleware() Middleware[S] {
	return e.dispatch
}

func (e *Engine[S]) dispatch(store Store[S], action ir.Action, next Dispatcher) any {
	matched, fired := e.selectRules(store, action)
	e.notify(action, matched, fired)

	if len(fired) == 0 {
		return next(action)
	}

	reactions := make([]Middleware[S], len(fired))
	for i, r := range fired {
		e.logger.Debug("rule fired",
			"rule", r.Type,
			"action_type", action.Type,
			"position", i,
		)
		reactions[i] = r.Reaction
	}
	return Chain(store, next, reactions...)(action)
}

// selectRules returns the rules whose action types contain action.Type and,
// among those, the rules whose condition holds. Both keep declaration order.
func (e *Engine[S]) selectRules(store Store[S], action ir.Action) (matched, fired []*Rule[S]) {
	for i := range e.rules {
		if e.rules[i].listensTo(action.Type) {
			matched = append(matched, &e.rules[i])
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	// One state read per dispatch, after the type filter.
	facts := Facts[S]{State: store.GetState(), Action: action}
	for _, r := range matched {
		if r.Condition(facts) {
			fired = append(fired, r)
		}
	}
	return matched, fired
}

func (e *Engine[S]) notify(action ir.Action, matched, fired []*Rule[S]) {
	if len(e.observers) == 0 {
		return
	}
	ev := Evaluation{
		Action:      action,
		TypeMatched: ruleTypes(matched),
		Fired:       ruleTypes(fired),
	}
	for _, o := range e.observers {
		o.Evaluated(ev)
	}
}

func ruleTypes[S any](rules []*Rule[S]) []string {
	if len(rules) == 0 {
		return nil
	}
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Type
	}
	return out
}
