package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/ir"
)

func rule(typ string, listens []string, dispatches ...string) ir.RuleSpec {
	r := ir.RuleSpec{Type: typ, ActionTypes: listens, Reaction: ir.ReactionSpec{Timing: ir.TimingAfter}}
	for _, d := range dispatches {
		r.Reaction.Dispatch = append(r.Reaction.Dispatch, ir.ActionTemplate{Type: d})
	}
	return r
}

// TestAnalyzeCycles_Empty tests that empty input produces no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&ir.Program{}))
}

// TestAnalyzeCycles_DAG tests that a directed acyclic graph produces no warnings.
func TestAnalyzeCycles_DAG(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("login-greeting", []string{"LOGIN"}, "NOTIFY"),
		rule("notify-audit", []string{"NOTIFY"}, "AUDIT"),
		rule("audit-sink", []string{"AUDIT"}),
	}}
	warnings := AnalyzeCycles(p)
	assert.Empty(t, warnings, "DAG should produce no cycle warnings")
	assert.NotNil(t, warnings)
}

// TestAnalyzeCycles_SelfLoop tests a rule that dispatches its own trigger.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("retry", []string{"FETCH"}, "FETCH"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"retry", "retry"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "retry")
}

// TestAnalyzeCycles_TwoNodeCycle tests a ping-pong pair.
func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("ping", []string{"PING"}, "PONG"),
		rule("pong", []string{"PONG"}, "PING"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"ping", "pong", "ping"}, warnings[0].Path)
	assert.Equal(t, "potential cycle: ping -> pong -> ping", warnings[0].Message)
}

// TestAnalyzeCycles_ThreeNodeCycle tests a longer loop with an exit branch.
func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("a", []string{"A"}, "B"),
		rule("b", []string{"B"}, "C", "DONE"),
		rule("c", []string{"C"}, "A"),
		rule("done", []string{"DONE"}),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
}

// TestAnalyzeCycles_Deterministic tests that output is stable across runs
// and ordered by declaration.
func TestAnalyzeCycles_Deterministic(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("z-loop", []string{"Z"}, "Z"),
		rule("m-ping", []string{"M1"}, "M2"),
		rule("m-pong", []string{"M2"}, "M1"),
		rule("a-loop", []string{"A"}, "A"),
	}}

	first := AnalyzeCycles(p)
	require.Len(t, first, 3)
	assert.Equal(t, "z-loop", first[0].Path[0])
	assert.Equal(t, "m-ping", first[1].Path[0])
	assert.Equal(t, "a-loop", first[2].Path[0])

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(p))
	}
}

// TestAnalyzeCycles_SharedActionType tests fan-out to several listeners.
func TestAnalyzeCycles_SharedActionType(t *testing.T) {
	p := &ir.Program{Rules: []ir.RuleSpec{
		rule("emit", []string{"START"}, "TICK"),
		rule("count", []string{"TICK"}),
		rule("loop", []string{"TICK"}, "START"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"emit", "loop", "emit"}, warnings[0].Path)
}
