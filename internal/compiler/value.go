package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/ruleware/internal/ir"
)

// toIR converts a concrete CUE value into an IRValue. Floats and
// non-concrete values are rejected.
func toIR(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("integer out of range: %v", err), Pos: v.Pos()}
		}
		return ir.IRInt(i), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: field, Message: "floats are not allowed", Pos: v.Pos()}
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := toIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			if _, isNull := elem.(ir.IRNull); isNull {
				return nil, &CompileError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "list elements may not be null", Pos: iter.Value().Pos()}
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := iter.Label()
			elem, err := toIR(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
	}
}

// lookupString returns the string at label, "" when absent.
func lookupString(v cue.Value, label, field string) (string, bool, error) {
	f := v.LookupPath(cue.MakePath(cue.Str(label)))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", true, &CompileError{Field: field, Message: "must be a string", Pos: f.Pos()}
	}
	return s, true, nil
}

// lookupStrings returns the string list at label, nil when absent.
func lookupStrings(v cue.Value, label, field string) ([]string, error) {
	f := v.LookupPath(cue.MakePath(cue.Str(label)))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: f.Pos()}
	}
	out := []string{}
	for i := 0; iter.Next(); i++ {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}
