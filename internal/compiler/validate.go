package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrEmptyProgram = "E200" // no rules and no reducers

	// Rule errors (E201-E209)
	ErrRuleTypeEmpty      = "E201" // type is required
	ErrRuleNoActionTypes  = "E202" // actionTypes is required
	ErrInvalidOperator    = "E203" // unknown combinator or comparison
	ErrInvalidPath        = "E204" // path must start at state or action
	ErrInvalidTiming      = "E205" // timing must be before, after or instead
	ErrInvalidDispatch    = "E206" // dispatched action has no type, or nothing to dispatch
	ErrDuplicateRuleType  = "E207" // two rules share a type
	ErrInvalidTemplateRef = "E208" // ${...} reference outside state or action

	// Reducer errors (E210-E219)
	ErrReducerNoAction    = "E210" // on is required
	ErrReducerNoOperation = "E211" // exactly one of set, append, merge, increment, unset
	ErrReducerBadPath     = "E212" // target path empty or prefixed, or from not a facts path
	ErrReducerBadOperand  = "E213" // operand missing or of the wrong kind
)

// ValidationError represents a semantic error in a compiled program.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program and returns every error found.
// An empty result means BuildRules and reducer.New will accept it.
func Validate(p *ir.Program) []ValidationError {
	if p == nil || (len(p.Rules) == 0 && len(p.Reducers) == 0) {
		return []ValidationError{{
			Field:   "rules",
			Message: "program defines no rules or reducers",
			Code:    ErrEmptyProgram,
		}}
	}

	var errs []ValidationError
	seen := make(map[string]int)
	for i, rule := range p.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		errs = append(errs, validateRule(rule, field)...)

		if rule.Type == "" {
			continue
		}
		if first, dup := seen[rule.Type]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("duplicate rule type %q (first declared at rules[%d])", rule.Type, first),
				Code:    ErrDuplicateRuleType,
			})
			continue
		}
		seen[rule.Type] = i
	}

	for i, red := range p.Reducers {
		errs = append(errs, validateReducer(red, fmt.Sprintf("reducers[%d]", i))...)
	}
	return errs
}

func validateRule(rule ir.RuleSpec, field string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(rule.Type) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".type",
			Message: "type is required and must be non-empty",
			Code:    ErrRuleTypeEmpty,
		})
	}

	if rule.ActionTypes == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".actionTypes",
			Message: "actionTypes is required",
			Code:    ErrRuleNoActionTypes,
		})
	}
	for j, at := range rule.ActionTypes {
		if at == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.actionTypes[%d]", field, j),
				Message: "action type must be non-empty",
				Code:    ErrRuleNoActionTypes,
			})
		}
	}

	if rule.Condition != nil {
		errs = append(errs, validateCondition(*rule.Condition, field+".condition")...)
	}
	errs = append(errs, validateReaction(rule.Reaction, field+".reaction")...)
	return errs
}

func validateCondition(c ir.ConditionSpec, field string) []ValidationError {
	switch c.Op {
	case ir.OpEvery, ir.OpSome, ir.OpNotEvery, ir.OpNotSome:
		var errs []ValidationError
		for i, child := range c.Children {
			errs = append(errs, validateCondition(child, fmt.Sprintf("%s.%s[%d]", field, c.Op, i))...)
		}
		return errs
	case ir.OpCompare:
	default:
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("unknown condition operator %q", c.Op),
			Code:    ErrInvalidOperator,
		}}
	}

	var errs []ValidationError
	if !isFactsPath(c.Path) {
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: fmt.Sprintf("path %q must start with \"state\" or \"action\"", c.Path),
			Code:    ErrInvalidPath,
		})
	}
	if !ir.ValidComparisons[c.Compare] {
		errs = append(errs, ValidationError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown comparison %q", c.Compare),
			Code:    ErrInvalidOperator,
		})
		return errs
	}

	needsValue := c.Compare != ir.CmpExists && c.Compare != ir.CmpTruthy
	if needsValue && c.Value == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".value",
			Message: fmt.Sprintf("comparison %q needs a value", c.Compare),
			Code:    ErrInvalidOperator,
		})
	}
	if c.Compare == ir.CmpIn {
		if _, ok := c.Value.(ir.IRArray); !ok && c.Value != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".value",
				Message: "comparison \"in\" needs a list value",
				Code:    ErrInvalidOperator,
			})
		}
	}
	return errs
}

func validateReaction(r ir.ReactionSpec, field string) []ValidationError {
	var errs []ValidationError

	switch r.Timing {
	case ir.TimingBefore, ir.TimingAfter, ir.TimingInstead:
	default:
		errs = append(errs, ValidationError{
			Field:   field + ".timing",
			Message: fmt.Sprintf("invalid timing %q, must be \"before\", \"after\" or \"instead\"", r.Timing),
			Code:    ErrInvalidTiming,
		})
	}

	// instead with no dispatch swallows the action; before/after with none
	// would be a no-op rule.
	if len(r.Dispatch) == 0 && r.Timing != ir.TimingInstead {
		errs = append(errs, ValidationError{
			Field:   field + ".dispatch",
			Message: fmt.Sprintf("timing %q needs at least one action to dispatch", r.Timing),
			Code:    ErrInvalidDispatch,
		})
	}

	for i, tmpl := range r.Dispatch {
		tf := fmt.Sprintf("%s.dispatch[%d]", field, i)
		if strings.TrimSpace(tmpl.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   tf + ".type",
				Message: "dispatched action needs a type",
				Code:    ErrInvalidDispatch,
			})
		}
		for _, ref := range templateRefsIn(tmpl.Payload) {
			if !isFactsPath(ref) {
				errs = append(errs, ValidationError{
					Field:   tf + ".payload",
					Message: fmt.Sprintf("template reference ${%s} must start with \"state\" or \"action\"", ref),
					Code:    ErrInvalidTemplateRef,
				})
			}
		}
	}
	return errs
}

func validateReducer(r ir.ReducerSpec, field string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(r.On) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".on",
			Message: "on is required and must name an action type",
			Code:    ErrReducerNoAction,
		})
	}

	if !ir.ValidReduceOps[r.Op] {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "reducer needs exactly one of set, append, merge, increment, unset",
			Code:    ErrReducerNoOperation,
		})
		return errs
	}

	// Target paths are relative to state.
	if r.Path == "" || isFactsPath(r.Path) {
		errs = append(errs, ValidationError{
			Field:   field + "." + r.Op,
			Message: fmt.Sprintf("target path %q must name a field inside state, without a state or action prefix", r.Path),
			Code:    ErrReducerBadPath,
		})
	}

	if r.From != "" && !isFactsPath(r.From) {
		errs = append(errs, ValidationError{
			Field:   field + ".from",
			Message: fmt.Sprintf("from %q must start with \"state\" or \"action\"", r.From),
			Code:    ErrReducerBadPath,
		})
	}

	switch r.Op {
	case ir.ReduceSet, ir.ReduceAppend:
		if r.From == "" && r.Value == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s needs from or value", r.Op),
				Code:    ErrReducerBadOperand,
			})
		}
	case ir.ReduceMerge:
		if r.From == "" {
			if _, ok := r.Value.(ir.IRObject); !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "merge needs from or a struct value",
					Code:    ErrReducerBadOperand,
				})
			}
		}
	case ir.ReduceIncrement:
		if r.Value != nil {
			if _, ok := r.Value.(ir.IRInt); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".value",
					Message: "increment value must be an integer",
					Code:    ErrReducerBadOperand,
				})
			}
		}
	case ir.ReduceUnset:
		if r.From != "" || r.Value != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "unset takes no operand",
				Code:    ErrReducerBadOperand,
			})
		}
	}
	return errs
}

// isFactsPath reports whether path is rooted at state or action.
func isFactsPath(path string) bool {
	root, _, _ := strings.Cut(path, ".")
	return root == "state" || root == "action"
}
