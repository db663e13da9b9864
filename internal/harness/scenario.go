package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ruleware/internal/ir"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the CUE rule program to load. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Program string `yaml:"program"`

	// Token pins the journal token. Defaults to testutil.DefaultToken.
	Token string `yaml:"token,omitempty"`

	// InitialState seeds the container.
	InitialState map[string]any `yaml:"initial_state,omitempty"`

	// MaxDepth and MaxSteps override the container quota when non-zero.
	MaxDepth int `yaml:"max_depth,omitempty"`
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps are dispatched in order, each as a root dispatch.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step dispatches one action.
type Step struct {
	// Dispatch is the action type.
	Dispatch string `yaml:"dispatch"`

	// Payload is the action payload.
	Payload map[string]any `yaml:"payload,omitempty"`

	// ExpectState maps state paths to expected values after the step.
	ExpectState map[string]any `yaml:"expect_state,omitempty"`

	// ExpectPanic, when set, requires the dispatch to panic with a message
	// containing this text. Quota overruns and reaction failures surface
	// this way.
	ExpectPanic string `yaml:"expect_panic,omitempty"`
}

// Action converts the step into an ir.Action.
func (s Step) Action() (ir.Action, error) {
	action := ir.Action{Type: s.Dispatch}
	if s.Payload != nil {
		payload, err := ir.ObjectFromAny(s.Payload)
		if err != nil {
			return ir.Action{}, fmt.Errorf("payload: %w", err)
		}
		if err := ir.CheckNullElements(payload); err != nil {
			return ir.Action{}, fmt.Errorf("payload: %w", err)
		}
		action.Payload = payload
	}
	return action, nil
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count, rule_order,
	// and optionally rule_fired to restrict to dispatches of that type).
	Action string `yaml:"action,omitempty"`

	// Payload is a subset the dispatched payload must contain (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Actions is the expected relative order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Rule names a rule (rule_fired).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected chain order (rule_order).
	Rules []string `yaml:"rules,omitempty"`

	// Count is an exact occurrence count (trace_count, rule_fired).
	Count *int `yaml:"count,omitempty"`

	// Path is a state path (final_state).
	Path string `yaml:"path,omitempty"`

	// Equals is the expected value at Path (final_state).
	Equals any `yaml:"equals,omitempty"`

	// Absent requires Path to be missing or null (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRuleFired     = "rule_fired"
	AssertRuleOrder     = "rule_order"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the program path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}
	if _, err := os.Stat(scenario.Program); err != nil {
		return nil, fmt.Errorf("invalid scenario: program not found: %s", scenario.Program)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MaxDepth < 0 || s.MaxSteps < 0 {
		return fmt.Errorf("max_depth and max_steps must be non-negative")
	}
	initial, err := ir.ObjectFromAny(s.InitialState)
	if err != nil {
		return fmt.Errorf("initial_state: %w", err)
	}
	if err := ir.CheckNullElements(initial); err != nil {
		return fmt.Errorf("initial_state: %w", err)
	}

	for i, step := range s.Steps {
		if step.Dispatch == "" {
			return fmt.Errorf("steps[%d]: dispatch is required", i)
		}
		if _, err := step.Action(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for trace_count", index)
		}
	case AssertRuleFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_fired", index)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_fired", index)
		}
	case AssertRuleOrder:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for rule_order", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if a.Equals == nil && !a.Absent {
			return fmt.Errorf("assertions[%d]: equals or absent is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
