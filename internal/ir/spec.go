package ir

// Program is a compiled declarative rule set: rules and reducers, both in
// declaration order.
type Program struct {
	Rules    []RuleSpec    `json:"rules"`
	Reducers []ReducerSpec `json:"reducers,omitempty"`
}

// RuleSpec is the declarative form of a rule.
type RuleSpec struct {
	Type        string         `json:"type"`
	ActionTypes []string       `json:"actionTypes"`
	Condition   *ConditionSpec `json:"condition,omitempty"` // nil = always true
	Reaction    ReactionSpec   `json:"reaction"`
}

// Condition operators. The four combinators nest; OpCompare is a leaf.
const (
	OpEvery    = "every"
	OpSome     = "some"
	OpNotEvery = "notEvery"
	OpNotSome  = "notSome"
	OpCompare  = "compare"
)

// Comparison operators for OpCompare leaves.
const (
	CmpEq       = "eq"
	CmpNeq      = "neq"
	CmpGt       = "gt"
	CmpGte      = "gte"
	CmpLt       = "lt"
	CmpLte      = "lte"
	CmpContains = "contains" // path is an array containing value, or a string containing it
	CmpIn       = "in"       // value is an array containing the path's value
	CmpExists   = "exists"
	CmpTruthy   = "truthy"
)

// ValidComparisons lists the accepted leaf comparison operators.
var ValidComparisons = map[string]bool{
	CmpEq: true, CmpNeq: true, CmpGt: true, CmpGte: true, CmpLt: true, CmpLte: true,
	CmpContains: true, CmpIn: true, CmpExists: true, CmpTruthy: true,
}

// ConditionSpec is one node of a declarative condition tree.
type ConditionSpec struct {
	Op       string          `json:"op"`
	Children []ConditionSpec `json:"children,omitempty"` // combinators
	Path     string          `json:"path,omitempty"`     // compare: "state.x" or "action.payload.y"
	Compare  string          `json:"compare,omitempty"`  // compare operator
	Value    IRValue         `json:"value,omitempty"`
}

// Reaction timings.
const (
	TimingBefore  = "before"  // dispatch follow-ups, then continue
	TimingAfter   = "after"   // continue, then dispatch follow-ups
	TimingInstead = "instead" // dispatch follow-ups and stop propagation
)

// ReactionSpec is the declarative form of a reaction: follow-up actions to
// dispatch around the continuation.
type ReactionSpec struct {
	Timing   string           `json:"timing"`
	Dispatch []ActionTemplate `json:"dispatch,omitempty"`
}

// ActionTemplate is an action whose string payload leaves may reference
// facts with ${state.path} or ${action.path}.
type ActionTemplate struct {
	Type    string   `json:"type"`
	Payload IRObject `json:"payload,omitempty"`
}

// Reducer operations.
const (
	ReduceSet       = "set"
	ReduceAppend    = "append"
	ReduceMerge     = "merge"
	ReduceIncrement = "increment"
	ReduceUnset     = "unset"
)

// ValidReduceOps lists the accepted reducer operations.
var ValidReduceOps = map[string]bool{
	ReduceSet: true, ReduceAppend: true, ReduceMerge: true, ReduceIncrement: true, ReduceUnset: true,
}

// ReducerSpec is one declarative state transition: when an action of type
// On is reduced, apply Op at Path. The operand is read from From (a facts
// path) when set, otherwise Value.
type ReducerSpec struct {
	On    string  `json:"on"`
	Op    string  `json:"op"`
	Path  string  `json:"path"`
	From  string  `json:"from,omitempty"`
	Value IRValue `json:"value,omitempty"`
}
