package engine

import "github.com/roach88/ruleware/internal/ir"

// testState is the state shape used across engine tests.
type testState struct {
	User string
	N    int
}

// fakeStore is a minimal Store whose Dispatch re-enters a configurable
// dispatcher and whose GetState counts reads.
type fakeStore struct {
	state    testState
	reads    int
	dispatch Dispatcher
}

func (s *fakeStore) GetState() testState {
	s.reads++
	return s.state
}

func (s *fakeStore) Dispatch(action ir.Action) any {
	if s.dispatch == nil {
		return nil
	}
	return s.dispatch(action)
}

// recordingNext returns a terminal dispatcher that appends "next" to log and
// returns result.
func recordingNext(log *[]string, result any) Dispatcher {
	return func(ir.Action) any {
		*log = append(*log, "next")
		return result
	}
}

// wrap returns a reaction that logs name-before, calls next, logs name-after.
func wrap(log *[]string, name string) Reaction[testState] {
	return func(_ Store[testState], action ir.Action, next Dispatcher) any {
		*log = append(*log, name+"-before")
		out := next(action)
		*log = append(*log, name+"-after")
		return out
	}
}

func passThrough(_ Store[testState], action ir.Action, next Dispatcher) any {
	return next(action)
}

func always(Facts[testState]) bool { return true }
func never(Facts[testState]) bool  { return false }

func act(t string) ir.Action { return ir.Action{Type: t} }
