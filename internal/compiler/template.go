package compiler

import (
	"regexp"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// templateRefPattern matches ${path} references in payload strings.
var templateRefPattern = regexp.MustCompile(`\$\{\s*([^}\s]*)\s*\}`)

// templateRefsIn returns every ${...} path referenced in payload, in
// traversal order of sorted keys.
func templateRefsIn(payload ir.IRObject) []string {
	var refs []string
	var walk func(v ir.IRValue)
	walk = func(v ir.IRValue) {
		switch val := v.(type) {
		case ir.IRString:
			for _, m := range templateRefPattern.FindAllStringSubmatch(string(val), -1) {
				refs = append(refs, m[1])
			}
		case ir.IRArray:
			for _, elem := range val {
				walk(elem)
			}
		case ir.IRObject:
			for _, k := range val.SortedKeys() {
				walk(val[k])
			}
		}
	}
	walk(payload)
	return refs
}

// renderTemplate instantiates an action template against facts.
//
// A string that is exactly one reference takes the referenced value with
// its type (missing paths render as null). References embedded in longer
// strings interpolate the value's text form (missing paths render empty).
func renderTemplate(tmpl ir.ActionTemplate, facts ir.IRObject) ir.Action {
	action := ir.Action{Type: tmpl.Type}
	if tmpl.Payload != nil {
		action.Payload = renderValue(tmpl.Payload, facts).(ir.IRObject)
	}
	return action
}

func renderValue(v ir.IRValue, facts ir.IRObject) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return renderString(string(val), facts)
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = renderValue(elem, facts)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = renderValue(elem, facts)
		}
		return out
	default:
		return v
	}
}

func renderString(s string, facts ir.IRObject) ir.IRValue {
	if !strings.Contains(s, "${") {
		return ir.IRString(s)
	}

	if loc := templateRefPattern.FindStringSubmatchIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
		val, ok := ir.Lookup(facts, s[loc[2]:loc[3]])
		if !ok || val == nil {
			return ir.IRNull{}
		}
		return val
	}

	return ir.IRString(templateRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		path := templateRefPattern.FindStringSubmatch(ref)[1]
		val, ok := ir.Lookup(facts, path)
		if !ok {
			return ""
		}
		if _, isNull := val.(ir.IRNull); isNull {
			return ""
		}
		return ir.String(val)
	}))
}
