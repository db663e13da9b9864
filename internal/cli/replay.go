package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/harness"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Token    string // optional - specific token only
	State    string // initial state the recorded session started from
}

// ReplayTokenResult holds the replay result for a single token.
type ReplayTokenResult struct {
	Token         string `json:"token"`
	RootActions   int    `json:"root_actions"`
	Dispatches    int    `json:"dispatches"`
	Firings       int    `json:"firings"`
	Interrupted   int    `json:"interrupted"`
	ProgramMatch  bool   `json:"program_match"`
	StateMatch    bool   `json:"state_match"`
	Deterministic bool   `json:"deterministic"`
	Difference    string `json:"difference,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Tokens           []ReplayTokenResult `json:"tokens"`
	TotalTokens      int                 `json:"total_tokens"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <program>",
		Short: "Replay journaled dispatches and verify determinism",
		Long: `Replay the root actions of each journaled token through the program
and verify the engine reproduces the recorded trace.

Each token is re-dispatched into a fresh in-memory container starting from
--state. Dispatches, rule firings (with positions) and completions must
match the journal in order, and the final state hash must match the one
recorded when the last root dispatch completed.

Exit codes:
  0 - All tokens replay deterministically
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  ruleware replay ./rules.cue --db ./ruleware.db
  ruleware replay ./rules.cue --db ./ruleware.db --token 0190...
  ruleware replay ./rules.cue --db ./ruleware.db --state '{"season":"summer"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "replay specific token only")
	cmd.Flags().StringVar(&opts.State, "state", "{}", "initial state as JSON")

	return cmd
}

func runReplay(opts *ReplayOptions, programPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	initial, err := parseJSONObject("--state", opts.State)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeBadInput, err)
	}
	program, err := LoadProgram(programPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}
	programHash, err := ir.ProgramHash(program)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}

	db := opts.journalPath(opts.Database)
	if db == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var tokens []string
	if opts.Token != "" {
		tokens = []string{opts.Token}
	} else {
		summaries, err := st.ListTokens(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list tokens", err)
		}
		for _, s := range summaries {
			tokens = append(tokens, s.Token)
		}
	}

	result := ReplayResult{
		Tokens:           make([]ReplayTokenResult, 0, len(tokens)),
		TotalTokens:      len(tokens),
		AllDeterministic: true,
	}

	r := replayer{
		store:       st,
		program:     programPath,
		programHash: programHash,
		initial:     initial,
		runOpts: []harness.Option{
			harness.WithLogger(opts.logger()),
			harness.WithQuota(opts.MaxDepth, opts.MaxSteps),
		},
	}
	for _, token := range tokens {
		tr, err := r.replayToken(ctx, token)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay token %s", token), err)
		}
		result.Tokens = append(result.Tokens, tr)
		if !tr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if err := newFormatter(opts.RootOptions, cmd).Result(result, func(w io.Writer) {
		outputReplayText(w, result, opts.Verbose)
	}); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayer re-runs journaled tokens against one program.
type replayer struct {
	store       *store.Store
	program     string
	programHash string
	initial     map[string]any
	runOpts     []harness.Option
}

// replayToken re-dispatches a token's root actions into a fresh container
// under the same token and compares the result with the journal.
func (r replayer) replayToken(ctx context.Context, token string) (ReplayTokenResult, error) {
	recorded, err := r.store.ReadTrace(ctx, token)
	if err != nil {
		return ReplayTokenResult{}, err
	}
	state, err := r.store.GetTokenState(ctx, token)
	if err != nil {
		return ReplayTokenResult{}, err
	}
	roots, err := r.store.RootActions(ctx, token)
	if err != nil {
		return ReplayTokenResult{}, err
	}

	out := ReplayTokenResult{
		Token:        token,
		RootActions:  len(roots),
		Dispatches:   state.Dispatches,
		Firings:      state.Firings,
		Interrupted:  state.Interrupted,
		ProgramMatch: true,
	}
	for _, d := range recorded.Dispatches {
		if d.ProgramHash != "" && d.ProgramHash != r.programHash {
			out.ProgramMatch = false
			break
		}
	}

	scenario := &harness.Scenario{
		Name:         "replay " + token,
		Program:      r.program,
		Token:        token,
		InitialState: r.initial,
		Steps:        make([]harness.Step, len(roots)),
	}
	for i, action := range roots {
		payload, _ := ir.ToAny(action.Payload).(map[string]any)
		scenario.Steps[i] = harness.Step{Dispatch: action.Type, Payload: payload}
	}

	// Panics are part of the recorded behaviour; a replayed panic shows up
	// as missing completions, not as a run error.
	replayed, err := harness.RunContext(ctx, scenario, r.runOpts...)
	if err != nil {
		return ReplayTokenResult{}, err
	}

	out.Difference = diffTraces(harness.FlattenTrace(recorded), replayed.Trace)

	out.StateMatch = true
	if state.FinalStateHash != "" {
		hash, err := ir.StateHash(replayed.State)
		if err != nil {
			return ReplayTokenResult{}, fmt.Errorf("hash replayed state: %w", err)
		}
		out.StateMatch = hash == state.FinalStateHash
		if !out.StateMatch && out.Difference == "" {
			out.Difference = fmt.Sprintf("final state hash: recorded %s, replayed %s", state.FinalStateHash, hash)
		}
	}

	out.Deterministic = out.Difference == ""
	return out, nil
}

// diffTraces compares two traces ignoring seq numbers and returns a
// description of the first difference, or "" when they match.
func diffTraces(recorded, replayed []harness.TraceEvent) string {
	for i := 0; i < min(len(recorded), len(replayed)); i++ {
		if !sameEvent(recorded[i], replayed[i]) {
			return fmt.Sprintf("event %d: recorded %s, replayed %s", i, recorded[i], replayed[i])
		}
	}
	switch {
	case len(recorded) > len(replayed):
		return fmt.Sprintf("replay stopped early: missing %s", recorded[len(replayed)])
	case len(replayed) > len(recorded):
		return fmt.Sprintf("replay produced extra %s", replayed[len(recorded)])
	}
	return ""
}

func sameEvent(a, b harness.TraceEvent) bool {
	return a.Kind == b.Kind &&
		a.Action == b.Action &&
		a.Depth == b.Depth &&
		a.Rule == b.Rule &&
		a.Position == b.Position &&
		ir.Equal(ir.StripNulls(a.Payload), ir.StripNulls(b.Payload))
}

// outputReplayText outputs replay results as human-readable text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.TotalTokens == 0 {
		fmt.Fprintln(w, "No tokens found in database.")
		return
	}

	fmt.Fprintln(w, "Replaying journal...")
	fmt.Fprintln(w)

	for _, tr := range result.Tokens {
		status := "✓"
		if !tr.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d root action(s), %d dispatch(es), %d firing(s)\n",
			status, tr.Token, tr.RootActions, tr.Dispatches, tr.Firings)
		if tr.Difference != "" {
			fmt.Fprintf(w, "    %s\n", tr.Difference)
		}
		if !tr.ProgramMatch {
			fmt.Fprintln(w, "    warning: journal was recorded with a different program")
		}
		if verbose && tr.Interrupted > 0 {
			fmt.Fprintf(w, "    %d dispatch(es) interrupted\n", tr.Interrupted)
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d token(s) replayed deterministically.\n", result.TotalTokens)
	} else {
		fmt.Fprintln(w, "Determinism verification FAILED.")
	}
}
