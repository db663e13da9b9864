package store

import "github.com/roach88/ruleware/internal/ir"

// Dispatch is one journaled action.
type Dispatch struct {
	ID            string    `json:"id"`
	Token         string    `json:"token"`
	ParentID      string    `json:"parent_id,omitempty"`
	Depth         int       `json:"depth"`
	Action        ir.Action `json:"action"`
	Seq           int64     `json:"seq"`
	ProgramHash   string    `json:"program_hash,omitempty"`
	EngineVersion string    `json:"engine_version"`
	IRVersion     string    `json:"ir_version"`
}

// Firing records that a rule's reaction was chained for a dispatch.
type Firing struct {
	ID         int64  `json:"id"`
	DispatchID string `json:"dispatch_id"`
	RuleType   string `json:"rule_type"`
	Position   int    `json:"position"`
	Seq        int64  `json:"seq"`
}

// Completion records that a dispatch returned normally, with the state
// hash observed at that point. Dispatches interrupted by a panic have none.
type Completion struct {
	DispatchID string `json:"dispatch_id"`
	StateHash  string `json:"state_hash,omitempty"`
	Seq        int64  `json:"seq"`
}

// Trace is everything journaled under one token, each slice in seq order.
type Trace struct {
	Token       string       `json:"token"`
	Dispatches  []Dispatch   `json:"dispatches"`
	Firings     []Firing     `json:"firings"`
	Completions []Completion `json:"completions"`
}

// TokenSummary describes one token for listings.
type TokenSummary struct {
	Token      string `json:"token"`
	RootType   string `json:"root_type"`
	Dispatches int    `json:"dispatches"`
	Firings    int    `json:"firings"`
	FirstSeq   int64  `json:"first_seq"`
	LastSeq    int64  `json:"last_seq"`
}
