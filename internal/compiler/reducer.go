package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/ruleware/internal/ir"
)

// reduceOpLabels are the CUE labels naming a reducer operation; the label's
// value is the state path it targets.
var reduceOpLabels = []string{ir.ReduceSet, ir.ReduceAppend, ir.ReduceMerge, ir.ReduceIncrement, ir.ReduceUnset}

// compileReducer parses one element of the reducers list:
//
//	{on: "LOGIN_SUCCESS", set: "user", from: "action.payload.user"}
//	{on: "ADD_ITEM", append: "cart.items", from: "action.payload.item"}
//	{on: "INC", increment: "count", value: 2}
//	{on: "LOGOUT", unset: "user"}
//
// Exactly one operation label is expected; Validate reports zero or many.
func compileReducer(v cue.Value, field string) (ir.ReducerSpec, error) {
	var spec ir.ReducerSpec
	if err := v.Err(); err != nil {
		return spec, formatCUEError(err)
	}
	if v.Kind() != cue.StructKind {
		return spec, &CompileError{Field: field, Message: "reducer must be a struct", Pos: v.Pos()}
	}

	var err error
	spec.On, _, err = lookupString(v, "on", field+".on")
	if err != nil {
		return spec, err
	}

	for _, op := range reduceOpLabels {
		path, ok, err := lookupString(v, op, field+"."+op)
		if err != nil {
			return spec, err
		}
		if !ok {
			continue
		}
		if spec.Op != "" {
			return spec, &CompileError{
				Field:   field,
				Message: "reducer has more than one operation (" + spec.Op + ", " + op + ")",
				Pos:     v.Pos(),
			}
		}
		spec.Op = op
		spec.Path = path
	}

	spec.From, _, err = lookupString(v, "from", field+".from")
	if err != nil {
		return spec, err
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		spec.Value, err = toIR(valueVal, field+".value")
		if err != nil {
			return spec, err
		}
	}

	return spec, nil
}
