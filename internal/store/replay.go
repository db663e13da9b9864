package store

import (
	"context"
	"fmt"

	"github.com/roach88/ruleware/internal/ir"
)

// TokenState summarizes one token for replay and diagnostics.
type TokenState struct {
	Token      string
	Dispatches int
	Firings    int
	LastSeq    int64

	// Interrupted counts dispatches without a completion: a panic (quota,
	// reducer dispatch, user code) unwound them.
	Interrupted int

	// FinalStateHash is the state hash recorded when the last root
	// dispatch of the token completed. Empty if it never completed.
	FinalStateHash string
}

// IsComplete reports whether every dispatch under the token completed.
func (ts TokenState) IsComplete() bool {
	return ts.Interrupted == 0
}

// GetTokenState reads a token's trace and analyzes it.
func (s *Store) GetTokenState(ctx context.Context, token string) (TokenState, error) {
	trace, err := s.ReadTrace(ctx, token)
	if err != nil {
		return TokenState{Token: token}, fmt.Errorf("get token state: %w", err)
	}
	return analyzeTrace(trace), nil
}

func analyzeTrace(trace Trace) TokenState {
	state := TokenState{
		Token:      trace.Token,
		Dispatches: len(trace.Dispatches),
		Firings:    len(trace.Firings),
	}

	completed := make(map[string]Completion, len(trace.Completions))
	for _, c := range trace.Completions {
		completed[c.DispatchID] = c
		state.LastSeq = max(state.LastSeq, c.Seq)
	}
	for _, f := range trace.Firings {
		state.LastSeq = max(state.LastSeq, f.Seq)
	}

	var lastRoot *Dispatch
	for i := range trace.Dispatches {
		d := &trace.Dispatches[i]
		state.LastSeq = max(state.LastSeq, d.Seq)
		if _, ok := completed[d.ID]; !ok {
			state.Interrupted++
		}
		if d.Depth == 0 {
			lastRoot = d
		}
	}
	if lastRoot != nil {
		state.FinalStateHash = completed[lastRoot.ID].StateHash
	}
	return state
}

// FindInterrupted returns the state of every token with at least one
// interrupted dispatch, in ListTokens order.
func (s *Store) FindInterrupted(ctx context.Context) ([]TokenState, error) {
	tokens, err := s.ListTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("find interrupted: %w", err)
	}

	var out []TokenState
	for _, ts := range tokens {
		state, err := s.GetTokenState(ctx, ts.Token)
		if err != nil {
			return nil, fmt.Errorf("find interrupted: %w", err)
		}
		if !state.IsComplete() {
			out = append(out, state)
		}
	}
	return out, nil
}

// RootActions returns a token's root (depth 0) actions in seq order.
// Re-dispatching them into a fresh container with the same rules and
// initial state reproduces the token's trace.
func (s *Store) RootActions(ctx context.Context, token string) ([]ir.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE token = ? AND depth = 0
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query root actions: %w", err)
	}
	defer rows.Close()

	actions := []ir.Action{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, d.Action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate root actions: %w", err)
	}
	return actions, nil
}
