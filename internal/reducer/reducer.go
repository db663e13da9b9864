// Package reducer applies declarative state transitions to IRObject state.
//
// Each ir.ReducerSpec names an action type and one operation on a path
// inside state. Steps for the same action run in declaration order, each
// seeing the previous step's output. State is never mutated in place.
package reducer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// Reducer is a compiled set of reducer specs.
type Reducer struct {
	steps  map[string][]ir.ReducerSpec
	logger *slog.Logger
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithLogger sets the logger used for steps that fail at runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New indexes specs by action type. It rejects unknown operations and
// empty targets; full checks belong to compiler.Validate.
func New(specs []ir.ReducerSpec, opts ...Option) (*Reducer, error) {
	r := &Reducer{
		steps:  make(map[string][]ir.ReducerSpec),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, spec := range specs {
		if spec.On == "" {
			return nil, fmt.Errorf("reducers[%d]: missing action type", i)
		}
		if !ir.ValidReduceOps[spec.Op] {
			return nil, fmt.Errorf("reducers[%d]: unknown operation %q", i, spec.Op)
		}
		if spec.Path == "" {
			return nil, fmt.Errorf("reducers[%d]: empty target path", i)
		}
		r.steps[spec.On] = append(r.steps[spec.On], spec)
	}
	return r, nil
}

// Handles reports whether any step listens to actionType.
func (r *Reducer) Handles(actionType string) bool {
	return len(r.steps[actionType]) > 0
}

// Reduce is the container reducer. A step that fails is logged and
// skipped; the remaining steps still run.
func (r *Reducer) Reduce(state ir.IRObject, action ir.Action) ir.IRObject {
	if state == nil {
		state = ir.IRObject{}
	}
	for _, spec := range r.steps[action.Type] {
		next, err := apply(state, action, spec)
		if err != nil {
			r.logger.Warn("reducer step failed",
				"action_type", action.Type,
				"op", spec.Op,
				"path", spec.Path,
				"error", err)
			continue
		}
		state = next
	}
	return state
}

// Apply runs every step for action and stops at the first failure.
func (r *Reducer) Apply(state ir.IRObject, action ir.Action) (ir.IRObject, error) {
	if state == nil {
		state = ir.IRObject{}
	}
	for _, spec := range r.steps[action.Type] {
		next, err := apply(state, action, spec)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

func apply(state ir.IRObject, action ir.Action, spec ir.ReducerSpec) (ir.IRObject, error) {
	if spec.Op == ir.ReduceUnset {
		return ir.Delete(state, spec.Path), nil
	}

	operand, ok := resolveOperand(state, action, spec)
	if !ok {
		// from names a missing fact
		return state, nil
	}
	current, exists := ir.Lookup(state, spec.Path)
	if _, isNull := current.(ir.IRNull); isNull {
		exists = false
	}

	switch spec.Op {
	case ir.ReduceSet:
		return ir.Set(state, spec.Path, operand)

	case ir.ReduceAppend:
		var arr ir.IRArray
		if exists {
			existing, ok := current.(ir.IRArray)
			if !ok {
				return nil, fmt.Errorf("append %s: target is %T, not a list", spec.Path, current)
			}
			arr = make(ir.IRArray, len(existing), len(existing)+1)
			copy(arr, existing)
		}
		return ir.Set(state, spec.Path, append(arr, operand))

	case ir.ReduceMerge:
		patch, ok := operand.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("merge %s: operand is %T, not a struct", spec.Path, operand)
		}
		merged := ir.IRObject{}
		if exists {
			existing, ok := current.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("merge %s: target is %T, not a struct", spec.Path, current)
			}
			merged = existing.Clone()
		}
		for k, v := range patch {
			merged[k] = v
		}
		return ir.Set(state, spec.Path, merged)

	case ir.ReduceIncrement:
		by, ok := operand.(ir.IRInt)
		if !ok {
			return nil, fmt.Errorf("increment %s: operand is %T, not an integer", spec.Path, operand)
		}
		var base ir.IRInt
		if exists {
			existing, ok := current.(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("increment %s: target is %T, not an integer", spec.Path, current)
			}
			base = existing
		}
		return ir.Set(state, spec.Path, base+by)
	}
	return nil, fmt.Errorf("unknown operation %q", spec.Op)
}

// resolveOperand reads from a facts path when set, otherwise the literal
// value. increment defaults to 1.
func resolveOperand(state ir.IRObject, action ir.Action, spec ir.ReducerSpec) (ir.IRValue, bool) {
	if spec.From != "" {
		root, rest, _ := strings.Cut(spec.From, ".")
		var base ir.IRValue
		switch root {
		case "state":
			base = state
		case "action":
			base = action.ToIR()
		default:
			return nil, false
		}
		return ir.Lookup(base, rest)
	}
	if spec.Value == nil {
		if spec.Op == ir.ReduceIncrement {
			return ir.IRInt(1), true
		}
		return ir.IRNull{}, true
	}
	return spec.Value, true
}
