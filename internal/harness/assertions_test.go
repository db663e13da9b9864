package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/ir"
)

func intPtr(n int) *int { return &n }

// checkoutTrace mirrors a CHECKOUT with two rules chained, each
// dispatching one follow-up action.
func checkoutTrace() []TraceEvent {
	return []TraceEvent{
		{Kind: EventDispatch, Seq: 1, Action: "CHECKOUT", Payload: ir.O("cart", 42)},
		{Kind: EventFired, Seq: 2, Action: "CHECKOUT", Rule: "discounts/VIP", Position: 0},
		{Kind: EventFired, Seq: 3, Action: "CHECKOUT", Rule: "receipts/EMAIL", Position: 1},
		{Kind: EventDispatch, Seq: 4, Action: "APPLY_DISCOUNT", Depth: 1, Payload: ir.O("code", "VIP", "meta", ir.O("percent", 20, "source", "rule"))},
		{Kind: EventCompleted, Seq: 5, Action: "APPLY_DISCOUNT", Depth: 1},
		{Kind: EventDispatch, Seq: 6, Action: "SEND_RECEIPT", Depth: 1},
		{Kind: EventFired, Seq: 7, Action: "SEND_RECEIPT", Depth: 1, Rule: "audit/LOG"},
		{Kind: EventCompleted, Seq: 8, Action: "SEND_RECEIPT", Depth: 1},
		{Kind: EventCompleted, Seq: 9, Action: "CHECKOUT"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := checkoutTrace()

	tests := []struct {
		name    string
		a       Assertion
		wantErr bool
	}{
		{"action only", Assertion{Action: "SEND_RECEIPT"}, false},
		{"payload subset", Assertion{Action: "APPLY_DISCOUNT", Payload: map[string]any{"code": "VIP"}}, false},
		{"nested subset", Assertion{Action: "APPLY_DISCOUNT", Payload: map[string]any{"meta": map[string]any{"percent": 20}}}, false},
		{"payload mismatch", Assertion{Action: "APPLY_DISCOUNT", Payload: map[string]any{"code": "SUMMER"}}, true},
		{"missing key", Assertion{Action: "CHECKOUT", Payload: map[string]any{"user": "x"}}, true},
		{"absent action", Assertion{Action: "REFUND"}, true},
		{"fired events ignored", Assertion{Action: "audit/LOG"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, tt.a)
			if tt.wantErr {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := checkoutTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"CHECKOUT", "SEND_RECEIPT"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"CHECKOUT", "APPLY_DISCOUNT", "SEND_RECEIPT"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"SEND_RECEIPT", "APPLY_DISCOUNT"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEND_RECEIPT (seq 6) should be before APPLY_DISCOUNT (seq 4)")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"CHECKOUT", "REFUND"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: REFUND")
}

func TestAssertTraceCount(t *testing.T) {
	trace := checkoutTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "APPLY_DISCOUNT", Count: intPtr(1)}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "REFUND", Count: intPtr(0)}))

	err := assertTraceCount(trace, Assertion{Action: "APPLY_DISCOUNT", Count: intPtr(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of APPLY_DISCOUNT")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertRuleFired(t *testing.T) {
	trace := checkoutTrace()

	assert.NoError(t, assertRuleFired(trace, Assertion{Rule: "discounts/VIP"}))
	assert.NoError(t, assertRuleFired(trace, Assertion{Rule: "audit/LOG", Action: "SEND_RECEIPT", Count: intPtr(1)}))
	assert.NoError(t, assertRuleFired(trace, Assertion{Rule: "audit/LOG", Action: "CHECKOUT", Count: intPtr(0)}))

	err := assertRuleFired(trace, Assertion{Rule: "discounts/SUMMER"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never fired")

	err = assertRuleFired(trace, Assertion{Rule: "discounts/VIP", Count: intPtr(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fired 1 times")
}

func TestAssertRuleOrder(t *testing.T) {
	trace := checkoutTrace()

	assert.NoError(t, assertRuleOrder(trace, Assertion{Action: "CHECKOUT", Rules: []string{"discounts/VIP", "receipts/EMAIL"}}))
	assert.NoError(t, assertRuleOrder(trace, Assertion{Action: "SEND_RECEIPT", Rules: []string{"audit/LOG"}}))
	assert.NoError(t, assertRuleOrder(trace, Assertion{Action: "APPLY_DISCOUNT"}), "nil rules means none fired")

	err := assertRuleOrder(trace, Assertion{Action: "CHECKOUT", Rules: []string{"receipts/EMAIL", "discounts/VIP"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules [discounts/VIP receipts/EMAIL]")

	err = assertRuleOrder(trace, Assertion{Action: "REFUND", Rules: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
}

func TestEvaluateAssertionsFinalState(t *testing.T) {
	result := NewResult()
	result.State = ir.O("user", ir.O("name", "Manolo"), "cleared", ir.IRNull{})

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Path: "user.name", Equals: "Manolo"},
		{Type: AssertFinalState, Path: "cleared", Absent: true},
		{Type: AssertFinalState, Path: "missing", Absent: true},
		{Type: AssertFinalState, Path: "user.name", Equals: "Ana"},
		{Type: AssertFinalState, Path: "user", Absent: true},
		{Type: AssertFinalState, Path: "count", Equals: 1},
	})

	require.Len(t, failures, 3)
	assert.Equal(t, `assertion 3: state.user.name: expected "Ana", got "Manolo"`, failures[0])
	assert.Equal(t, `assertion 4: state.user: expected absent, got {"name":"Manolo"}`, failures[1])
	assert.Equal(t, `assertion 5: state.count: expected 1, not found`, failures[2])
}

func TestEvaluateAssertionsUnknownType(t *testing.T) {
	failures := EvaluateAssertions(NewResult(), []Assertion{{Type: "magic"}})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], `unknown assertion type "magic"`)
}

func TestAssertionErrorIncludesTrace(t *testing.T) {
	err := assertTraceCount(checkoutTrace(), Assertion{Action: "CHECKOUT", Count: intPtr(2)})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, `[1] CHECKOUT {"cart":42}`)
	assert.Contains(t, msg, "fired discounts/VIP (#0)")
	assert.Contains(t, msg, "[6]   SEND_RECEIPT")
}

func TestResultAddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
