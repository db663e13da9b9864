package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ruleware/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot renders the scenario result as canonical JSON: the scenario
// name, the token, the final state and the seq-ordered trace. Null state
// members are dropped, so a field cleared to null and a field never set
// snapshot the same.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = eventObject(ev)
	}

	state := ir.IRObject{}
	if result.State != nil {
		state = ir.StripNulls(result.State).(ir.IRObject)
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(name),
		"token":    ir.IRString(result.Token),
		"state":    state,
		"trace":    trace,
	})
}

func eventObject(ev TraceEvent) ir.IRObject {
	obj := ir.IRObject{
		"kind":   ir.IRString(ev.Kind),
		"seq":    ir.IRInt(ev.Seq),
		"action": ir.IRString(ev.Action),
		"depth":  ir.IRInt(ev.Depth),
	}
	switch ev.Kind {
	case EventDispatch:
		if len(ev.Payload) > 0 {
			obj["payload"] = ir.StripNulls(ev.Payload)
		}
	case EventFired:
		obj["rule"] = ir.IRString(ev.Rule)
		obj["position"] = ir.IRInt(ev.Position)
	}
	return obj
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further assertions. Scenario
// failures are returned as an error rather than failing t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// name without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
