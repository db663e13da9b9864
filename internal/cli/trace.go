package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/harness"
	"github.com/roach88/ruleware/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Token    string
	Action   string // optional - filter to specific action type
}

// ProvenanceEdge links a dispatch to a follow-up dispatched by one of the
// rules chained for it.
type ProvenanceEdge struct {
	FromDispatch string   `json:"from_dispatch"`
	FromAction   string   `json:"from_action"`
	Rules        []string `json:"rules"`
	ToDispatch   string   `json:"to_dispatch"`
	ToAction     string   `json:"to_action"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Dispatches     int    `json:"dispatches"`
	Firings        int    `json:"firings"`
	Interrupted    int    `json:"interrupted"`
	IsComplete     bool   `json:"is_complete"`
	FinalStateHash string `json:"final_state_hash,omitempty"`
}

// TraceResult holds the complete trace output for one token.
type TraceResult struct {
	Token      string               `json:"token"`
	Timeline   []harness.TraceEvent `json:"timeline"`
	Provenance []ProvenanceEdge     `json:"provenance"`
	Stats      TraceStats           `json:"stats"`
}

// TokenList holds the journal overview shown when no token is given.
type TokenList struct {
	Tokens       []store.TokenSummary `json:"tokens"`
	FiringCounts map[string]int       `json:"firing_counts,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the dispatch journal",
		Long: `Inspect the dispatch journal.

Without --token, lists every token with its root action and counts
(--verbose adds per-rule firing totals). With --token, shows:
- Timeline: dispatches, rule firings and completions in seq order
- Provenance: which rules led each dispatch to its follow-ups
- Stats: counts and whether any dispatch was interrupted

Examples:
  ruleware trace --db ./ruleware.db
  ruleware trace --db ./ruleware.db --token 0190...
  ruleware trace --db ./ruleware.db --token 0190... --action CHECKOUT --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "token to trace (default: list tokens)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter timeline to one action type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	db := opts.journalPath(opts.Database)
	if db == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Token == "" {
		return listTokens(ctx, st, opts.Verbose, formatter)
	}

	trace, err := st.ReadTrace(ctx, opts.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	if len(trace.Dispatches) == 0 {
		empty := TraceResult{
			Token:      opts.Token,
			Timeline:   []harness.TraceEvent{},
			Provenance: []ProvenanceEdge{},
		}
		return formatter.Result(empty, func(w io.Writer) {
			fmt.Fprintf(w, "No events found for token: %s\n", opts.Token)
		})
	}

	state, err := st.GetTokenState(ctx, opts.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get token state", err)
	}
	provenance, err := buildProvenance(ctx, st, trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build provenance", err)
	}

	result := TraceResult{
		Token:      opts.Token,
		Timeline:   filterTimeline(harness.FlattenTrace(trace), opts.Action),
		Provenance: provenance,
		Stats: TraceStats{
			Dispatches:     state.Dispatches,
			Firings:        state.Firings,
			Interrupted:    state.Interrupted,
			IsComplete:     state.IsComplete(),
			FinalStateHash: state.FinalStateHash,
		},
	}

	return formatter.Result(result, func(w io.Writer) {
		outputTraceText(w, result, opts.Verbose)
	})
}

// listTokens prints the journal overview.
func listTokens(ctx context.Context, st *store.Store, verbose bool, formatter *OutputFormatter) error {
	tokens, err := st.ListTokens(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list tokens", err)
	}
	list := TokenList{Tokens: tokens}
	if verbose {
		list.FiringCounts, err = st.FiringCounts(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count firings", err)
		}
	}

	return formatter.Result(list, func(w io.Writer) {
		if len(tokens) == 0 {
			fmt.Fprintln(w, "No tokens found in database.")
			return
		}
		fmt.Fprintf(w, "%-38s %-20s %10s %8s  %s\n", "TOKEN", "ROOT", "DISPATCHES", "FIRINGS", "SEQ")
		for _, ts := range tokens {
			fmt.Fprintf(w, "%-38s %-20s %10d %8d  %d-%d\n",
				ts.Token, ts.RootType, ts.Dispatches, ts.Firings, ts.FirstSeq, ts.LastSeq)
		}

		if len(list.FiringCounts) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "=== Rule Firings ===")
			rules := make([]string, 0, len(list.FiringCounts))
			for rule := range list.FiringCounts {
				rules = append(rules, rule)
			}
			sort.Strings(rules)
			for _, rule := range rules {
				fmt.Fprintf(w, "  %s: %d\n", rule, list.FiringCounts[rule])
			}
		}
	})
}

// filterTimeline keeps only events belonging to dispatches of actionType.
// An empty filter keeps everything.
func filterTimeline(events []harness.TraceEvent, actionType string) []harness.TraceEvent {
	if actionType == "" {
		return events
	}
	out := []harness.TraceEvent{}
	for _, ev := range events {
		if ev.Action == actionType {
			out = append(out, ev)
		}
	}
	return out
}

// buildProvenance links each dispatch to its children, labelled with the
// rules chained for the parent.
func buildProvenance(ctx context.Context, st *store.Store, trace store.Trace) ([]ProvenanceEdge, error) {
	edges := []ProvenanceEdge{}

	for _, d := range trace.Dispatches {
		children, err := st.ReadChildren(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read children: %w", err)
		}
		if len(children) == 0 {
			continue
		}

		firings, err := st.ReadFiringsForDispatch(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read firings: %w", err)
		}
		rules := make([]string, len(firings))
		for i, f := range firings {
			rules[i] = f.RuleType
		}

		for _, child := range children {
			edges = append(edges, ProvenanceEdge{
				FromDispatch: d.ID,
				FromAction:   d.Action.Type,
				Rules:        rules,
				ToDispatch:   child.ID,
				ToAction:     child.Action.Type,
			})
		}
	}
	return edges, nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Token: %s\n", result.Token)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  %s\n", ev)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Provenance ===")
	if len(result.Provenance) == 0 {
		fmt.Fprintln(w, "  (no follow-up dispatches)")
	}
	for _, edge := range result.Provenance {
		if verbose {
			fmt.Fprintf(w, "  %s %s -[%s]-> %s %s\n",
				edge.FromAction, truncateID(edge.FromDispatch),
				strings.Join(edge.Rules, ", "),
				edge.ToAction, truncateID(edge.ToDispatch))
			continue
		}
		fmt.Fprintf(w, "  %s -[%s]-> %s\n", edge.FromAction, strings.Join(edge.Rules, ", "), edge.ToAction)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Dispatches:  %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "  Firings:     %d\n", result.Stats.Firings)
	fmt.Fprintf(w, "  Interrupted: %d\n", result.Stats.Interrupted)
	if verbose && result.Stats.FinalStateHash != "" {
		fmt.Fprintf(w, "  State hash:  %s\n", result.Stats.FinalStateHash)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// completeStatus returns a human-readable completion status.
func completeStatus(stats TraceStats) string {
	if stats.IsComplete {
		return "Complete"
	}
	return fmt.Sprintf("Interrupted (%d dispatch(es) without completion)", stats.Interrupted)
}
