package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/ir"
)

func TestLoadScenarioResolvesProgram(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/hello.yaml")
	require.NoError(t, err)

	assert.Equal(t, "hello", s.Name)
	assert.Equal(t, "hello-token", s.Token)
	assert.Equal(t, filepath.Join("testdata", "programs", "greeting.cue"), s.Program)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "LOGIN_SUCCESS", s.Steps[0].Dispatch)
	assert.Equal(t, "Hello Manolo!", s.Steps[0].ExpectState["message"])
	require.Len(t, s.Assertions, 4)
	require.NotNil(t, s.Assertions[0].Count)
	assert.Equal(t, 1, *s.Assertions[0].Count)
}

func TestLoadScenarioMissingProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
program: nope.cue
steps: [{dispatch: A}]
assertions: [{type: trace_count, action: A, count: 1}]
`), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program not found")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: s
description: d
program: p.cue
flow: []
steps: [{dispatch: A}]
assertions: [{type: trace_count, action: A, count: 1}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	base := "name: s\ndescription: d\nprogram: p.cue\n"
	steps := "steps: [{dispatch: A}]\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nprogram: p.cue\n" + steps + "assertions: [{type: trace_order, actions: [A]}]", "name is required"},
		{"missing program", "name: s\ndescription: d\n" + steps + "assertions: [{type: trace_order, actions: [A]}]", "program is required"},
		{"no steps", base + "assertions: [{type: trace_order, actions: [A]}]", "steps list is required"},
		{"step without dispatch", base + "steps: [{payload: {a: 1}}]\nassertions: [{type: trace_order, actions: [A]}]", "steps[0]: dispatch is required"},
		{"float payload", base + "steps: [{dispatch: A, payload: {n: 1.5}}]\nassertions: [{type: trace_order, actions: [A]}]", "steps[0]: payload"},
		{"null in payload list", base + "steps: [{dispatch: A, payload: {items: [x, null]}}]\nassertions: [{type: trace_order, actions: [A]}]", "steps[0]: payload: null array element at items.1"},
		{"null in initial state list", base + "initial_state: {tags: [null]}\n" + steps + "assertions: [{type: trace_order, actions: [A]}]", "initial_state: null array element at tags.0"},
		{"no assertions", base + steps, "assertions list is required"},
		{"unknown assertion", base + steps + "assertions: [{type: magic}]", "unknown assertion type"},
		{"trace_count without count", base + steps + "assertions: [{type: trace_count, action: A}]", "count is required"},
		{"rule_fired without rule", base + steps + "assertions: [{type: rule_fired}]", "rule is required"},
		{"rule_order without action", base + steps + "assertions: [{type: rule_order, rules: [r]}]", "action is required"},
		{"final_state without expectation", base + steps + "assertions: [{type: final_state, path: x}]", "equals or absent"},
		{"negative depth", base + "max_depth: -1\n" + steps + "assertions: [{type: trace_order, actions: [A]}]", "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStepAction(t *testing.T) {
	step := Step{Dispatch: "ADD", Payload: map[string]any{"n": 2, "tags": []any{"x"}}}
	action, err := step.Action()
	require.NoError(t, err)
	assert.Equal(t, ir.Action{Type: "ADD", Payload: ir.O("n", 2, "tags", ir.A("x"))}, action)

	bare, err := Step{Dispatch: "PING"}.Action()
	require.NoError(t, err)
	assert.Nil(t, bare.Payload)
}
