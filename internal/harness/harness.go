package harness

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/ruleware/internal/compiler"
	"github.com/roach88/ruleware/internal/container"
	"github.com/roach88/ruleware/internal/engine"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/logging"
	"github.com/roach88/ruleware/internal/reducer"
	"github.com/roach88/ruleware/internal/store"
	"github.com/roach88/ruleware/internal/testutil"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	observers []engine.Observer
	store     *store.Store
	tokens    store.TokenGenerator
	maxDepth  int
	maxSteps  int
}

// WithLogger routes engine, container and journal logs to logger.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver attaches an extra engine observer, such as a metrics
// collector, next to the journal recorder.
func WithObserver(o engine.Observer) Option {
	return func(c *runConfig) {
		c.observers = append(c.observers, o)
	}
}

// WithStore journals into st instead of a fresh in-memory store. The
// caller owns st. Seq resumes after the journal's last entry, so the
// trace is no longer byte-identical across runs.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) { c.store = st }
}

// WithTokens replaces the fixed scenario token with tokens. The trace and
// Result.Token follow the first token minted.
func WithTokens(tokens store.TokenGenerator) Option {
	return func(c *runConfig) { c.tokens = tokens }
}

// WithQuota sets the container limits used when the scenario does not set
// its own. Default: the container defaults.
func WithQuota(maxDepth, maxSteps int) Option {
	return func(c *runConfig) {
		c.maxDepth = maxDepth
		c.maxSteps = maxSteps
	}
}

// Run executes a scenario with a background context.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario and returns the result.
//
// By default each scenario runs against a fresh in-memory journal, a
// deterministic clock and a fixed token, so reruns are byte-identical.
//
// Execution flow:
//  1. Compile, validate and build the program
//  2. Wire recorder, engine and reducer into a container
//  3. Dispatch each step, checking expected panics and state
//  4. Read the trace back from the journal and evaluate assertions
//
// The returned error covers setup failures (unreadable or invalid
// program, journal errors). Step and assertion failures are reported in
// Result.Errors.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}

	program, err := compiler.CompilePath(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to compile program: %w", err)
	}
	rules, err := compiler.BuildRules(program)
	if err != nil {
		return nil, err
	}
	red, err := reducer.New(program.Reducers, reducer.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build reducer: %w", err)
	}
	programHash, err := ir.ProgramHash(program)
	if err != nil {
		return nil, fmt.Errorf("failed to hash program: %w", err)
	}

	initial, err := ir.ObjectFromAny(scenario.InitialState)
	if err == nil {
		err = ir.CheckNullElements(initial)
	}
	if err != nil {
		return nil, fmt.Errorf("initial_state: %w", err)
	}

	st := cfg.store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	token := scenario.Token
	if token == "" {
		token = testutil.DefaultToken
	}
	ropts := []store.RecorderOption[ir.IRObject]{
		store.WithProgramHash[ir.IRObject](programHash),
		store.WithStateHasher[ir.IRObject](ir.StateHash),
		store.WithRecorderLogger[ir.IRObject](cfg.logger),
	}
	if cfg.store == nil {
		ropts = append(ropts, store.WithSequencer[ir.IRObject](testutil.NewDeterministicClock()))
	}
	if cfg.tokens != nil {
		ropts = append(ropts, store.WithTokens[ir.IRObject](cfg.tokens))
	} else {
		ropts = append(ropts, store.WithTokens[ir.IRObject](testutil.NewFixedTokenGenerator(token)))
	}
	rec, err := store.NewRecorder(ctx, st, ropts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	eopts := []engine.Option[ir.IRObject]{
		engine.WithObserver[ir.IRObject](rec),
		engine.WithLogger[ir.IRObject](cfg.logger),
	}
	for _, o := range cfg.observers {
		eopts = append(eopts, engine.WithObserver[ir.IRObject](o))
	}
	eng, err := engine.New(rules, eopts...)
	if err != nil {
		return nil, err
	}

	copts := []container.Option[ir.IRObject]{
		container.WithMiddleware(rec.Middleware(), eng.Middleware()),
		container.WithLogger[ir.IRObject](cfg.logger),
	}
	if depth := firstPositive(scenario.MaxDepth, cfg.maxDepth); depth > 0 {
		copts = append(copts, container.WithMaxDepth[ir.IRObject](depth))
	}
	if steps := firstPositive(scenario.MaxSteps, cfg.maxSteps); steps > 0 {
		copts = append(copts, container.WithMaxSteps[ir.IRObject](steps))
	}
	c := container.New(red.Reduce, initial, copts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runStep(c, i, step, result)
	}
	result.State = c.GetState()
	if minted := rec.Tokens(); len(minted) > 0 {
		token = minted[0]
	}
	result.Token = token

	trace, err := st.ReadTrace(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = FlattenTrace(trace)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep dispatches one step and records any mismatch in result.
func runStep(c *container.Container[ir.IRObject], index int, step Step, result *Result) {
	action, err := step.Action()
	if err != nil {
		result.AddError(fmt.Sprintf("step %d: %v", index, err))
		return
	}

	panicked, msg := dispatchRecover(c, action)
	switch {
	case step.ExpectPanic != "" && !panicked:
		result.AddError(fmt.Sprintf("step %d (%s): expected panic containing %q, dispatch returned normally",
			index, step.Dispatch, step.ExpectPanic))
	case step.ExpectPanic != "" && !strings.Contains(msg, step.ExpectPanic):
		result.AddError(fmt.Sprintf("step %d (%s): expected panic containing %q, got %q",
			index, step.Dispatch, step.ExpectPanic, msg))
	case step.ExpectPanic == "" && panicked:
		result.AddError(fmt.Sprintf("step %d (%s): dispatch panicked: %s", index, step.Dispatch, msg))
	}

	state := c.GetState()
	for _, path := range sortedPaths(step.ExpectState) {
		if err := checkStatePath(state, path, step.ExpectState[path], false); err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): %v", index, step.Dispatch, err))
		}
	}
}

// dispatchRecover dispatches action, converting a panic into its message.
func dispatchRecover(c *container.Container[ir.IRObject], action ir.Action) (panicked bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if err, ok := r.(error); ok {
				msg = err.Error()
			} else {
				msg = fmt.Sprint(r)
			}
		}
	}()
	c.Dispatch(action)
	return false, ""
}

// checkStatePath compares the state value at path with want. With absent
// set, the path must be missing or null instead.
func checkStatePath(state ir.IRObject, path string, want any, absent bool) error {
	got, found := ir.Lookup(state, path)
	if _, isNull := got.(ir.IRNull); isNull {
		found = false
	}

	if absent {
		if found {
			return fmt.Errorf("state.%s: expected absent, got %s", path, describe(got))
		}
		return nil
	}

	expected, err := ir.FromAny(want)
	if err != nil {
		return fmt.Errorf("state.%s: expected value: %w", path, err)
	}
	if !found {
		return fmt.Errorf("state.%s: expected %s, not found", path, describe(expected))
	}
	if !ir.Equal(got, expected) {
		return fmt.Errorf("state.%s: expected %s, got %s", path, describe(expected), describe(got))
	}
	return nil
}

// describe renders v for failure messages, quoting strings.
func describe(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return strconv.Quote(string(s))
	}
	return ir.String(v)
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func sortedPaths(m map[string]any) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// FlattenTrace merges the journal tables into one seq-ordered event list.
func FlattenTrace(trace store.Trace) []TraceEvent {
	byID := make(map[string]store.Dispatch, len(trace.Dispatches))
	events := make([]TraceEvent, 0, len(trace.Dispatches)+len(trace.Firings)+len(trace.Completions))

	for _, d := range trace.Dispatches {
		byID[d.ID] = d
		events = append(events, TraceEvent{
			Kind:    EventDispatch,
			Seq:     d.Seq,
			Action:  d.Action.Type,
			Depth:   d.Depth,
			Payload: d.Action.Payload,
		})
	}
	for _, f := range trace.Firings {
		d := byID[f.DispatchID]
		events = append(events, TraceEvent{
			Kind:     EventFired,
			Seq:      f.Seq,
			Action:   d.Action.Type,
			Depth:    d.Depth,
			Rule:     f.RuleType,
			Position: f.Position,
		})
	}
	for _, c := range trace.Completions {
		d := byID[c.DispatchID]
		events = append(events, TraceEvent{
			Kind:   EventCompleted,
			Seq:    c.Seq,
			Action: d.Action.Type,
			Depth:  d.Depth,
		})
	}

	slices.SortFunc(events, func(a, b TraceEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return events
}
