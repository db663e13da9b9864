package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/harness"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/metrics"
	"github.com/roach88/ruleware/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool

	// Tokens overrides the journal token generator when --db is set (for
	// testing). Defaults to one UUIDv7 per invocation.
	Tokens store.TokenGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Token    string               `json:"token"`
	State    any                  `json:"state"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
	Metrics  []string             `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario through the rule engine",
		Long: `Run a scenario file: compile its program, dispatch its steps through
the rule middleware and check its assertions.

Without --db the journal is in-memory and the run is deterministic. With
--db every root dispatch is appended to the SQLite journal under one
fresh token, for later trace and replay.

Example:
  ruleware run ./scenarios/checkout.yaml
  ruleware run --db ./ruleware.db ./scenarios/checkout.yaml --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default in-memory)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print rule metrics after the run")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	m := metrics.New()
	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithObserver(m),
		harness.WithQuota(opts.MaxDepth, opts.MaxSteps),
	}

	if db := opts.journalPath(opts.Database); db != "" {
		logger.Info("opening journal", "path", db)
		st, err := store.Open(db)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		tokens := opts.Tokens
		if tokens == nil {
			tokens = &store.SessionGenerator{}
		}
		runOpts = append(runOpts, harness.WithStore(st), harness.WithTokens(tokens))
	}

	logger.Info("running scenario", "name", scenario.Name, "program", scenario.Program)
	result, err := harness.RunContext(cmd.Context(), scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Token:    result.Token,
		State:    ir.ToAny(result.State),
		Trace:    result.Trace,
		Errors:   result.Errors,
	}
	if opts.Metrics {
		samples, err := m.Snapshot()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
		for _, s := range samples {
			out.Metrics = append(out.Metrics, s.String())
		}
	}

	if err := newFormatter(opts.RootOptions, cmd).Result(out, func(w io.Writer) {
		outputRunText(w, out, result.State)
	}); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// outputRunText outputs the run result as text.
func outputRunText(w io.Writer, result RunResult, state ir.IRObject) {
	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", result.Scenario)
	} else {
		fmt.Fprintf(w, "✗ %s\n", result.Scenario)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "Token: %s\n\n", result.Token)

	fmt.Fprintln(w, "=== Trace ===")
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  %s\n", ev)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== State ===")
	fmt.Fprintf(w, "  %s\n", formatState(state))

	if len(result.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Metrics ===")
		for _, s := range result.Metrics {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
}

// formatState renders state as canonical JSON, dropping null leaves.
func formatState(state ir.IRObject) string {
	if state == nil {
		return "{}"
	}
	data, err := ir.MarshalCanonical(ir.StripNulls(state))
	if err != nil {
		return ir.String(state)
	}
	return string(data)
}
