package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/harness"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/store"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Payload  string
	State    string
	Database string
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <program> <action-type>",
		Short: "Dispatch one action through a rule program",
		Long: `Dispatch a single action through a rule program and print the
resulting trace and state.

The container starts from --state (default {}). With --db the dispatch is
journaled under a fresh token.

Example:
  ruleware dispatch ./rules.cue LOGIN_SUCCESS --payload '{"user":{"name":"Ada","roles":["admin"]}}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAction(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "action payload as JSON")
	cmd.Flags().StringVar(&opts.State, "state", "{}", "initial state as JSON")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default in-memory)")

	return cmd
}

func dispatchAction(opts *DispatchOptions, program, actionType string, cmd *cobra.Command) error {
	payload, err := parseJSONObject("--payload", opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeBadInput, err)
	}
	state, err := parseJSONObject("--state", opts.State)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeBadInput, err)
	}
	if _, err := LoadProgram(program); err != nil {
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	scenario := &harness.Scenario{
		Name:         "dispatch " + actionType,
		Program:      program,
		InitialState: state,
		Steps:        []harness.Step{{Dispatch: actionType, Payload: payload}},
	}

	logger := opts.logger()
	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithQuota(opts.MaxDepth, opts.MaxSteps),
	}
	if db := opts.journalPath(opts.Database); db != "" {
		st, err := store.Open(db)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st), harness.WithTokens(&store.SessionGenerator{}))
	}

	result, err := harness.RunContext(cmd.Context(), scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "dispatch failed", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Token:    result.Token,
		State:    ir.ToAny(result.State),
		Trace:    result.Trace,
		Errors:   result.Errors,
	}
	if err := newFormatter(opts.RootOptions, cmd).Result(out, func(w io.Writer) {
		outputRunText(w, out, result.State)
	}); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("dispatch of %s failed", actionType))
	}
	return nil
}

// parseJSONObject decodes a flag value into a plain map. Numbers stay
// json.Number so integers above 2^53 survive; ir.FromAny rejects floats.
func parseJSONObject(flag, s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid %s JSON: %w", flag, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid %s JSON: trailing data after object", flag)
	}
	obj, err := ir.ObjectFromAny(m)
	if err == nil {
		err = ir.CheckNullElements(obj)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", flag, err)
	}
	return m, nil
}
