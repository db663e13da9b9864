// Package ruleware is the public API for building rule-engine middleware.
//
// A Rule pairs the action types it listens to with a Condition over the
// current Facts and a Reaction that wraps the rest of the dispatch chain:
//
//	mw, err := ruleware.New([]ruleware.Rule[AppState]{{
//		Type:        "WELCOME_MESSAGE",
//		ActionTypes: []string{"LOGIN_SUCCESS"},
//		Condition:   isAdmin,
//		Reaction:    flashGreeting,
//	}})
//	store := ruleware.NewContainer(reduce, AppState{}, ruleware.WithMiddleware(mw))
//	store.Dispatch(ruleware.NewAction("LOGIN_SUCCESS", payload))
//
// Matching rules run in declaration order with the first-declared rule
// outermost. An action no rule matches goes straight to the next step.
package ruleware

import (
	"log/slog"

	"github.com/roach88/ruleware/internal/compiler"
	"github.com/roach88/ruleware/internal/container"
	"github.com/roach88/ruleware/internal/engine"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/reducer"
)

type (
	Action     = ir.Action
	Dispatcher = engine.Dispatcher

	Rule[S any]       = engine.Rule[S]
	Facts[S any]      = engine.Facts[S]
	Condition[S any]  = engine.Condition[S]
	Reaction[S any]   = engine.Reaction[S]
	Middleware[S any] = engine.Middleware[S]
	Store[S any]      = engine.Store[S]

	// Evaluation describes which rules matched one dispatch.
	Evaluation = engine.Evaluation
	Observer   = engine.Observer

	MalformedRuleError = engine.MalformedRuleError

	Container[S any] = container.Container[S]
	Reducer[S any]   = container.Reducer[S]
)

// State is the dynamic state type used by rules loaded from CUE.
type State = ir.IRObject

// NewAction builds an action from a plain Go payload. It panics on values
// that have no JSON form, such as floats with a fractional part.
func NewAction(actionType string, payload map[string]any) Action {
	return ir.NewAction(actionType, payload)
}

// Lookup reads a dotted path ("user.roles.0") from an action payload or
// State and returns it as a plain Go value: string, int64, bool, []any or
// map[string]any.
func Lookup(obj State, path string) (any, bool) {
	v, ok := ir.Lookup(obj, path)
	if !ok {
		return nil, false
	}
	return ir.ToAny(v), true
}

// Option configures the middleware returned by New.
type Option[S any] = engine.Option[S]

// WithObserver reports every dispatch's rule selection to o.
func WithObserver[S any](o Observer) Option[S] { return engine.WithObserver[S](o) }

// WithLogger logs fired rules at debug level.
func WithLogger[S any](logger *slog.Logger) Option[S] { return engine.WithLogger[S](logger) }

// New validates rules and returns their middleware. The first malformed
// rule, in declaration order, yields a *MalformedRuleError naming its type.
func New[S any](rules []Rule[S], opts ...Option[S]) (Middleware[S], error) {
	e, err := engine.New(rules, opts...)
	if err != nil {
		return nil, err
	}
	return e.Middleware(), nil
}

// MustNew is New for rule sets known to be valid. It panics on error.
func MustNew[S any](rules []Rule[S], opts ...Option[S]) Middleware[S] {
	return engine.MustNew(rules, opts...).Middleware()
}

// IsMalformedRule reports whether err came from rule validation.
func IsMalformedRule(err error) bool { return engine.IsMalformedRule(err) }

// Every is true when all conditions hold, and for an empty list.
func Every[S any](conditions ...Condition[S]) Condition[S] { return engine.Every(conditions...) }

// Some is true when at least one condition holds; false for an empty list.
func Some[S any](conditions ...Condition[S]) Condition[S] { return engine.Some(conditions...) }

// NotEvery is true when at least one condition fails; false for an empty list.
func NotEvery[S any](conditions ...Condition[S]) Condition[S] {
	return engine.NotEvery(conditions...)
}

// NotSome is true when no condition holds, and for an empty list.
func NotSome[S any](conditions ...Condition[S]) Condition[S] { return engine.NotSome(conditions...) }

// ContainerOption configures a Container.
type ContainerOption[S any] = container.Option[S]

// WithMiddleware appends mws to the chain; the first given is outermost.
func WithMiddleware[S any](mws ...Middleware[S]) ContainerOption[S] {
	return container.WithMiddleware(mws...)
}

// WithMaxDepth limits how deeply reactions may nest dispatches.
// 0 disables the limit.
func WithMaxDepth[S any](n int) ContainerOption[S] { return container.WithMaxDepth[S](n) }

// WithMaxSteps limits dispatches per root action. 0 disables the limit.
func WithMaxSteps[S any](n int) ContainerOption[S] { return container.WithMaxSteps[S](n) }

// NewContainer returns a state container that runs every dispatch through
// the given middleware before reducing it.
func NewContainer[S any](reduce Reducer[S], initial S, opts ...ContainerOption[S]) *Container[S] {
	return container.New(reduce, initial, opts...)
}

// Program is a compiled CUE rule set: its rules plus the reducer its
// reducer declarations describe.
type Program struct {
	Rules   []Rule[State]
	Reducer Reducer[State]
	Hash    string
}

// LoadRules compiles a CUE file, or a directory holding one CUE package,
// into rules and a reducer over State.
func LoadRules(path string) (*Program, error) {
	p, err := compiler.CompilePath(path)
	if err != nil {
		return nil, err
	}
	rules, err := compiler.BuildRules(p)
	if err != nil {
		return nil, err
	}
	red, err := reducer.New(p.Reducers)
	if err != nil {
		return nil, err
	}
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return nil, err
	}
	return &Program{Rules: rules, Reducer: red.Reduce, Hash: hash}, nil
}
