package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", ev.String())
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns one
// message per failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertRuleFired:
		return assertRuleFired(result.Trace, a)
	case AssertRuleOrder:
		return assertRuleOrder(result.Trace, a)
	case AssertFinalState:
		return checkStatePath(result.State, a.Path, a.Equals, a.Absent)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for a dispatch of the action whose payload
// contains the expected payload (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	expected, err := ir.ObjectFromAny(a.Payload)
	if err != nil {
		return fmt.Errorf("trace_contains payload: %w", err)
	}
	for _, ev := range trace {
		if ev.Kind == EventDispatch && ev.Action == a.Action && containsSubset(ev.Payload, expected) {
			return nil
		}
	}

	want := a.Action
	if len(expected) > 0 {
		want = fmt.Sprintf("%s with payload %s", a.Action, ir.String(expected))
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first dispatch of each action appears
// in the given order. Other dispatches may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for _, ev := range trace {
		if ev.Kind != EventDispatch {
			continue
		}
		if _, seen := positions[ev.Action]; !seen {
			positions[ev.Action] = int(ev.Seq)
		}
	}

	for _, action := range a.Actions {
		if _, ok := positions[action]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the action was dispatched exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == EventDispatch && ev.Action == a.Action {
			count++
		}
	}

	if a.Count == nil || count != *a.Count {
		want := "<unset>"
		if a.Count != nil {
			want = fmt.Sprint(*a.Count)
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s occurrences of %s", want, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRuleFired checks the rule fired at least once, or exactly Count
// times. With Action set only firings for that action type count.
func assertRuleFired(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind != EventFired || ev.Rule != a.Rule {
			continue
		}
		if a.Action != "" && ev.Action != a.Action {
			continue
		}
		count++
	}

	target := a.Rule
	if a.Action != "" {
		target = fmt.Sprintf("%s on %s", a.Rule, a.Action)
	}

	switch {
	case a.Count == nil && count == 0:
		return &AssertionError{
			Type:     AssertRuleFired,
			Expected: fmt.Sprintf("%s fired at least once", target),
			Actual:   "never fired",
			Trace:    trace,
		}
	case a.Count != nil && count != *a.Count:
		return &AssertionError{
			Type:     AssertRuleFired,
			Expected: fmt.Sprintf("%s fired %d times", target, *a.Count),
			Actual:   fmt.Sprintf("fired %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRuleOrder checks the rules fired for the first dispatch of Action,
// in chain position order. An empty Rules list asserts nothing fired.
func assertRuleOrder(trace []TraceEvent, a Assertion) error {
	var (
		found bool
		seq   int64
		depth int
	)
	for _, ev := range trace {
		if ev.Kind == EventDispatch && ev.Action == a.Action {
			found, seq, depth = true, ev.Seq, ev.Depth
			break
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertRuleOrder,
			Expected: fmt.Sprintf("a dispatch of %s", a.Action),
			Actual:   "not found in trace",
			Trace:    trace,
		}
	}

	// Firings for a dispatch are written before any nested dispatch, so
	// they directly follow it at the same depth.
	fired := []string{}
	for _, ev := range trace {
		if ev.Seq <= seq {
			continue
		}
		if ev.Kind != EventFired || ev.Depth != depth || ev.Action != a.Action {
			break
		}
		fired = append(fired, ev.Rule)
	}

	want := a.Rules
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(fired, want) {
		return &AssertionError{
			Type:     AssertRuleOrder,
			Expected: fmt.Sprintf("rules %v for %s", want, a.Action),
			Actual:   fmt.Sprintf("rules %v", fired),
			Trace:    trace,
		}
	}
	return nil
}

// containsSubset reports whether actual holds every key of expected with
// an equal value. Nested objects match by subset too.
func containsSubset(actual, expected ir.IRObject) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok {
			return false
		}
		wantObj, wantIsObj := want.(ir.IRObject)
		gotObj, gotIsObj := got.(ir.IRObject)
		if wantIsObj && gotIsObj {
			if !containsSubset(gotObj, wantObj) {
				return false
			}
			continue
		}
		if !ir.Equal(got, want) {
			return false
		}
	}
	return true
}
