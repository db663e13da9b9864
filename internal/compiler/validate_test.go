package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func validRule() ir.RuleSpec {
	return ir.RuleSpec{
		Type:        "greet-admin",
		ActionTypes: []string{"LOGIN_SUCCESS"},
		Condition: &ir.ConditionSpec{
			Op:      ir.OpCompare,
			Path:    "action.payload.user.isAdmin",
			Compare: ir.CmpTruthy,
		},
		Reaction: ir.ReactionSpec{
			Timing: ir.TimingAfter,
			Dispatch: []ir.ActionTemplate{{
				Type:    "NOTIFY",
				Payload: ir.O("message", "Hello ${action.payload.user.name}!"),
			}},
		},
	}
}

func TestValidateValidProgram(t *testing.T) {
	p := &ir.Program{
		Rules: []ir.RuleSpec{validRule()},
		Reducers: []ir.ReducerSpec{
			{On: "LOGIN_SUCCESS", Op: ir.ReduceSet, Path: "user", From: "action.payload.user"},
			{On: "INC", Op: ir.ReduceIncrement, Path: "count"},
			{On: "LOGOUT", Op: ir.ReduceUnset, Path: "user"},
		},
	}
	assert.Empty(t, Validate(p))
}

func TestValidateEmptyProgram(t *testing.T) {
	assert.Equal(t, []string{ErrEmptyProgram}, codes(Validate(nil)))
	assert.Equal(t, []string{ErrEmptyProgram}, codes(Validate(&ir.Program{})))
}

func TestValidateReducersOnly(t *testing.T) {
	p := &ir.Program{Reducers: []ir.ReducerSpec{
		{On: "SET", Op: ir.ReduceSet, Path: "x", Value: ir.IRInt(1)},
	}}
	assert.Empty(t, Validate(p))
}

func TestValidateRuleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ir.RuleSpec)
		code   string
		field  string
	}{
		{"empty type", func(r *ir.RuleSpec) { r.Type = "" }, ErrRuleTypeEmpty, "rules[0].type"},
		{"blank type", func(r *ir.RuleSpec) { r.Type = "  " }, ErrRuleTypeEmpty, "rules[0].type"},
		{"nil actionTypes", func(r *ir.RuleSpec) { r.ActionTypes = nil }, ErrRuleNoActionTypes, "rules[0].actionTypes"},
		{"empty action type entry", func(r *ir.RuleSpec) { r.ActionTypes = []string{""} }, ErrRuleNoActionTypes, "rules[0].actionTypes[0]"},
		{"unknown combinator", func(r *ir.RuleSpec) { r.Condition = &ir.ConditionSpec{Op: "xor"} }, ErrInvalidOperator, "rules[0].condition"},
		{"unknown comparison", func(r *ir.RuleSpec) { r.Condition.Compare = "like" }, ErrInvalidOperator, "rules[0].condition.op"},
		{"bad path root", func(r *ir.RuleSpec) { r.Condition.Path = "payload.user" }, ErrInvalidPath, "rules[0].condition.path"},
		{"eq without value", func(r *ir.RuleSpec) { r.Condition.Compare = ir.CmpEq }, ErrInvalidOperator, "rules[0].condition.value"},
		{"bad timing", func(r *ir.RuleSpec) { r.Reaction.Timing = "during" }, ErrInvalidTiming, "rules[0].reaction.timing"},
		{"after with nothing to dispatch", func(r *ir.RuleSpec) { r.Reaction.Dispatch = nil }, ErrInvalidDispatch, "rules[0].reaction.dispatch"},
		{"dispatch without type", func(r *ir.RuleSpec) { r.Reaction.Dispatch[0].Type = "" }, ErrInvalidDispatch, "rules[0].reaction.dispatch[0].type"},
		{"bad template ref", func(r *ir.RuleSpec) {
			r.Reaction.Dispatch[0].Payload = ir.O("x", "${payload.user}")
		}, ErrInvalidTemplateRef, "rules[0].reaction.dispatch[0].payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			errs := Validate(&ir.Program{Rules: []ir.RuleSpec{r}})
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateNestedConditionField(t *testing.T) {
	r := validRule()
	r.Condition = &ir.ConditionSpec{Op: ir.OpEvery, Children: []ir.ConditionSpec{
		{Op: ir.OpCompare, Path: "state.ok", Compare: ir.CmpTruthy},
		{Op: ir.OpNotSome, Children: []ir.ConditionSpec{
			{Op: ir.OpCompare, Path: "bogus", Compare: ir.CmpExists},
		}},
	}}
	errs := Validate(&ir.Program{Rules: []ir.RuleSpec{r}})
	require.Len(t, errs, 1)
	assert.Equal(t, "rules[0].condition.every[1].notSome[0].path", errs[0].Field)
}

func TestValidateInNeedsList(t *testing.T) {
	r := validRule()
	r.Condition = &ir.ConditionSpec{Op: ir.OpCompare, Path: "action.type", Compare: ir.CmpIn, Value: ir.IRString("A")}
	errs := Validate(&ir.Program{Rules: []ir.RuleSpec{r}})
	assert.Equal(t, []string{ErrInvalidOperator}, codes(errs))
}

func TestValidateInsteadWithoutDispatch(t *testing.T) {
	r := validRule()
	r.Reaction = ir.ReactionSpec{Timing: ir.TimingInstead}
	assert.Empty(t, Validate(&ir.Program{Rules: []ir.RuleSpec{r}}))
}

func TestValidateDuplicateRuleType(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{validRule(), validRule()}}
	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateRuleType, errs[0].Code)
	assert.Equal(t, "rules[1].type", errs[0].Field)
	assert.Contains(t, errs[0].Message, "rules[0]")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		{Reaction: ir.ReactionSpec{Timing: "bad"}},
	}}
	errs := Validate(p)
	assert.ElementsMatch(t,
		[]string{ErrRuleTypeEmpty, ErrRuleNoActionTypes, ErrInvalidTiming, ErrInvalidDispatch},
		codes(errs))
}

func TestValidateReducerErrors(t *testing.T) {
	tests := []struct {
		name    string
		reducer ir.ReducerSpec
		code    string
	}{
		{"missing on", ir.ReducerSpec{Op: ir.ReduceSet, Path: "x", Value: ir.IRInt(1)}, ErrReducerNoAction},
		{"missing op", ir.ReducerSpec{On: "A"}, ErrReducerNoOperation},
		{"empty path", ir.ReducerSpec{On: "A", Op: ir.ReduceSet, Value: ir.IRInt(1)}, ErrReducerBadPath},
		{"state prefixed path", ir.ReducerSpec{On: "A", Op: ir.ReduceSet, Path: "state.x", Value: ir.IRInt(1)}, ErrReducerBadPath},
		{"bad from", ir.ReducerSpec{On: "A", Op: ir.ReduceSet, Path: "x", From: "payload.x"}, ErrReducerBadPath},
		{"set without operand", ir.ReducerSpec{On: "A", Op: ir.ReduceSet, Path: "x"}, ErrReducerBadOperand},
		{"merge with scalar", ir.ReducerSpec{On: "A", Op: ir.ReduceMerge, Path: "x", Value: ir.IRInt(1)}, ErrReducerBadOperand},
		{"increment by string", ir.ReducerSpec{On: "A", Op: ir.ReduceIncrement, Path: "x", Value: ir.IRString("1")}, ErrReducerBadOperand},
		{"unset with value", ir.ReducerSpec{On: "A", Op: ir.ReduceUnset, Path: "x", Value: ir.IRInt(1)}, ErrReducerBadOperand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&ir.Program{Reducers: []ir.ReducerSpec{tt.reducer}})
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "rules[0].type", Message: "type is required", Code: ErrRuleTypeEmpty}
	assert.Equal(t, "[E201] rules[0].type: type is required", e.Error())

	e.Line = 7
	assert.Equal(t, "[E201] line 7: rules[0].type: type is required", e.Error())
}

func TestProgramErrorString(t *testing.T) {
	err := &ProgramError{Errors: []ValidationError{
		{Field: "a", Message: "m1", Code: "E201"},
		{Field: "b", Message: "m2", Code: "E202"},
		{Field: "c", Message: "m3", Code: "E201"},
	}}
	assert.Equal(t, "invalid program (3 errors): [E201] a: m1; [E202] b: m2; [E201] c: m3", err.Error())
	assert.Equal(t, []string{"E201", "E202"}, err.Codes())
}
