package compiler

import (
	"strings"

	"github.com/roach88/ruleware/internal/engine"
	"github.com/roach88/ruleware/internal/ir"
)

// BuildRules turns a validated program into engine rules over IRObject
// state. It validates first and returns a *ProgramError when the program
// has errors. Rule order follows declaration order.
func BuildRules(p *ir.Program) ([]engine.Rule[ir.IRObject], error) {
	if errs := Validate(p); len(errs) > 0 {
		return nil, &ProgramError{Errors: errs}
	}

	rules := make([]engine.Rule[ir.IRObject], 0, len(p.Rules))
	for _, spec := range p.Rules {
		cond := engine.Always[ir.IRObject]()
		if spec.Condition != nil {
			cond = BuildCondition(*spec.Condition)
		}
		rules = append(rules, engine.Rule[ir.IRObject]{
			Type:        spec.Type,
			ActionTypes: append([]string{}, spec.ActionTypes...),
			Condition:   cond,
			Reaction:    BuildReaction(spec.Reaction),
		})
	}
	return rules, nil
}

// BuildCondition compiles a condition tree into a predicate. Combinators
// map onto the engine's combinators, so empty lists keep their vacuous
// meaning.
func BuildCondition(c ir.ConditionSpec) engine.Condition[ir.IRObject] {
	switch c.Op {
	case ir.OpEvery, ir.OpSome, ir.OpNotEvery, ir.OpNotSome:
		children := make([]engine.Condition[ir.IRObject], len(c.Children))
		for i, child := range c.Children {
			children[i] = BuildCondition(child)
		}
		switch c.Op {
		case ir.OpEvery:
			return engine.Every(children...)
		case ir.OpSome:
			return engine.Some(children...)
		case ir.OpNotEvery:
			return engine.NotEvery(children...)
		default:
			return engine.NotSome(children...)
		}
	}

	path, compare, want := c.Path, c.Compare, c.Value
	return func(f engine.Facts[ir.IRObject]) bool {
		got, found := lookupFact(f, path)
		return compareValues(compare, got, found, want)
	}
}

// lookupFact resolves a state.* or action.* path without building the
// whole facts object.
func lookupFact(f engine.Facts[ir.IRObject], path string) (ir.IRValue, bool) {
	root, rest, _ := strings.Cut(path, ".")
	var base ir.IRValue
	switch root {
	case "state":
		if f.State == nil {
			base = ir.IRObject{}
		} else {
			base = f.State
		}
	case "action":
		base = f.Action.ToIR()
	default:
		return nil, false
	}
	return ir.Lookup(base, rest)
}

func compareValues(op string, got ir.IRValue, found bool, want ir.IRValue) bool {
	switch op {
	case ir.CmpExists:
		if !found {
			return false
		}
		_, isNull := got.(ir.IRNull)
		return !isNull
	case ir.CmpTruthy:
		return found && ir.Truthy(got)
	case ir.CmpEq:
		return ir.Equal(got, want)
	case ir.CmpNeq:
		return !ir.Equal(got, want)
	case ir.CmpGt, ir.CmpGte, ir.CmpLt, ir.CmpLte:
		cmp, ok := order(got, want)
		if !ok {
			return false
		}
		switch op {
		case ir.CmpGt:
			return cmp > 0
		case ir.CmpGte:
			return cmp >= 0
		case ir.CmpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case ir.CmpContains:
		switch g := got.(type) {
		case ir.IRArray:
			for _, elem := range g {
				if ir.Equal(elem, want) {
					return true
				}
			}
			return false
		case ir.IRString:
			w, ok := want.(ir.IRString)
			return ok && strings.Contains(string(g), string(w))
		default:
			return false
		}
	case ir.CmpIn:
		if !found {
			return false
		}
		list, ok := want.(ir.IRArray)
		if !ok {
			return false
		}
		for _, elem := range list {
			if ir.Equal(elem, got) {
				return true
			}
		}
		return false
	}
	return false
}

// order compares two ints or two strings. Mixed kinds are unordered.
func order(a, b ir.IRValue) (int, bool) {
	switch av := a.(type) {
	case ir.IRInt:
		bv, ok := b.(ir.IRInt)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case ir.IRString:
		bv, ok := b.(ir.IRString)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(av), string(bv)), true
	}
	return 0, false
}

// BuildReaction compiles a declarative reaction into middleware.
//
//   - before: dispatch follow-ups, then continue
//   - after: continue, then dispatch follow-ups; the result of next is returned
//   - instead: dispatch follow-ups and return the last result, never calling next
//
// Templates are rendered against the state current at the moment each
// follow-up is dispatched.
func BuildReaction(r ir.ReactionSpec) engine.Reaction[ir.IRObject] {
	templates := append([]ir.ActionTemplate{}, r.Dispatch...)

	fire := func(store engine.Store[ir.IRObject], action ir.Action) any {
		var last any
		for _, tmpl := range templates {
			facts := ir.FactsObject(store.GetState(), action)
			last = store.Dispatch(renderTemplate(tmpl, facts))
		}
		return last
	}

	switch r.Timing {
	case ir.TimingBefore:
		return func(store engine.Store[ir.IRObject], action ir.Action, next engine.Dispatcher) any {
			fire(store, action)
			return next(action)
		}
	case ir.TimingInstead:
		return func(store engine.Store[ir.IRObject], action ir.Action, _ engine.Dispatcher) any {
			return fire(store, action)
		}
	default:
		return func(store engine.Store[ir.IRObject], action ir.Action, next engine.Dispatcher) any {
			out := next(action)
			fire(store, action)
			return out
		}
	}
}
