package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/ruleware/internal/ir"
)

// combinatorLabels are the CUE labels of the four condition combinators,
// in the order they are checked.
var combinatorLabels = []string{ir.OpEvery, ir.OpSome, ir.OpNotEvery, ir.OpNotSome}

// compileRule parses one element of the rules list.
func compileRule(v cue.Value, field string) (ir.RuleSpec, error) {
	if err := v.Err(); err != nil {
		return ir.RuleSpec{}, formatCUEError(err)
	}
	if v.Kind() != cue.StructKind {
		return ir.RuleSpec{}, &CompileError{Field: field, Message: "rule must be a struct", Pos: v.Pos()}
	}

	var rule ir.RuleSpec
	var err error

	rule.Type, _, err = lookupString(v, "type", field+".type")
	if err != nil {
		return rule, err
	}

	rule.ActionTypes, err = lookupStrings(v, "actionTypes", field+".actionTypes")
	if err != nil {
		return rule, err
	}

	condVal := v.LookupPath(cue.ParsePath("condition"))
	if condVal.Exists() {
		rule.Condition, err = compileCondition(condVal, field+".condition")
		if err != nil {
			return rule, err
		}
	}

	reactionVal := v.LookupPath(cue.ParsePath("reaction"))
	if !reactionVal.Exists() {
		return rule, &CompileError{Field: field + ".reaction", Message: "reaction is required", Pos: v.Pos()}
	}
	rule.Reaction, err = compileReaction(reactionVal, field+".reaction")
	if err != nil {
		return rule, err
	}

	return rule, nil
}

// compileCondition parses a condition node. Accepted forms:
//   - true / false: vacuous every / some
//   - {every: [...]} and the other combinators
//   - {path: "...", op: "...", value?: ...}: a comparison leaf
func compileCondition(v cue.Value, field string) (*ir.ConditionSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if v.Kind() == cue.BoolKind {
		b, _ := v.Bool()
		if b {
			return &ir.ConditionSpec{Op: ir.OpEvery}, nil
		}
		return &ir.ConditionSpec{Op: ir.OpSome}, nil
	}
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "condition must be a bool or struct", Pos: v.Pos()}
	}

	var forms []string
	for _, label := range append(combinatorLabels, "path") {
		if v.LookupPath(cue.MakePath(cue.Str(label))).Exists() {
			forms = append(forms, label)
		}
	}
	if len(forms) > 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("condition has more than one of every, some, notEvery, notSome, path (found %s)", strings.Join(forms, ", ")),
			Pos:     v.Pos(),
		}
	}

	for _, op := range combinatorLabels {
		childrenVal := v.LookupPath(cue.MakePath(cue.Str(op)))
		if !childrenVal.Exists() {
			continue
		}
		iter, err := childrenVal.List()
		if err != nil {
			return nil, &CompileError{Field: field + "." + op, Message: "must be a list of conditions", Pos: childrenVal.Pos()}
		}
		spec := &ir.ConditionSpec{Op: op, Children: []ir.ConditionSpec{}}
		for i := 0; iter.Next(); i++ {
			child, err := compileCondition(iter.Value(), fmt.Sprintf("%s.%s[%d]", field, op, i))
			if err != nil {
				return nil, err
			}
			spec.Children = append(spec.Children, *child)
		}
		return spec, nil
	}

	spec := &ir.ConditionSpec{Op: ir.OpCompare}
	var err error
	var ok bool

	spec.Path, ok, err = lookupString(v, "path", field+".path")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{
			Field:   field,
			Message: "condition needs a combinator (every, some, notEvery, notSome) or a path",
			Pos:     v.Pos(),
		}
	}

	spec.Compare, ok, err = lookupString(v, "op", field+".op")
	if err != nil {
		return nil, err
	}
	if !ok {
		spec.Compare = ir.CmpTruthy
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		spec.Value, err = toIR(valueVal, field+".value")
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// compileReaction parses a reaction. dispatch may be a single action
// template or a list of them. timing defaults to after.
func compileReaction(v cue.Value, field string) (ir.ReactionSpec, error) {
	var spec ir.ReactionSpec
	if v.Kind() != cue.StructKind {
		return spec, &CompileError{Field: field, Message: "reaction must be a struct", Pos: v.Pos()}
	}

	timing, ok, err := lookupString(v, "timing", field+".timing")
	if err != nil {
		return spec, err
	}
	spec.Timing = ir.TimingAfter
	if ok {
		spec.Timing = timing
	}

	dispatchVal := v.LookupPath(cue.ParsePath("dispatch"))
	if !dispatchVal.Exists() {
		return spec, nil
	}

	switch dispatchVal.Kind() {
	case cue.StructKind:
		tmpl, err := compileTemplate(dispatchVal, field+".dispatch")
		if err != nil {
			return spec, err
		}
		spec.Dispatch = []ir.ActionTemplate{tmpl}
	case cue.ListKind:
		iter, _ := dispatchVal.List()
		for i := 0; iter.Next(); i++ {
			tmpl, err := compileTemplate(iter.Value(), fmt.Sprintf("%s.dispatch[%d]", field, i))
			if err != nil {
				return spec, err
			}
			spec.Dispatch = append(spec.Dispatch, tmpl)
		}
	default:
		return spec, &CompileError{Field: field + ".dispatch", Message: "must be an action or a list of actions", Pos: dispatchVal.Pos()}
	}

	return spec, nil
}

func compileTemplate(v cue.Value, field string) (ir.ActionTemplate, error) {
	var tmpl ir.ActionTemplate
	if v.Kind() != cue.StructKind {
		return tmpl, &CompileError{Field: field, Message: "action must be a struct", Pos: v.Pos()}
	}

	var err error
	tmpl.Type, _, err = lookupString(v, "type", field+".type")
	if err != nil {
		return tmpl, err
	}

	payloadVal := v.LookupPath(cue.ParsePath("payload"))
	if payloadVal.Exists() {
		payload, err := toIR(payloadVal, field+".payload")
		if err != nil {
			return tmpl, err
		}
		obj, ok := payload.(ir.IRObject)
		if !ok {
			return tmpl, &CompileError{Field: field + ".payload", Message: "payload must be a struct", Pos: payloadVal.Pos()}
		}
		tmpl.Payload = obj
	}

	return tmpl, nil
}
