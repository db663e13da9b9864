package container

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth is the default limit on nested dispatch depth.
const DefaultMaxDepth = 64

// DefaultMaxSteps is the default limit on dispatches under one root dispatch.
const DefaultMaxSteps = 1000

// Quota bounds the dispatch tree rooted at each top-level Dispatch call.
//
// Reactions may dispatch further actions, which may fire further rules.
// Two failure shapes are caught:
//   - Depth: a rule that reacts to its own output (A → A → A ...)
//   - Steps: a linear explosion of distinct actions (A → B → C → ... → Z),
//     or one reaction fanning out siblings without bound
//
// The counters reset when the root dispatch returns. A limit of 0 disables
// that check.
type Quota struct {
	maxDepth int
	maxSteps int

	root  string // action type of the current root dispatch
	depth int
	steps int
}

// NewQuota creates a quota with the given limits.
func NewQuota(maxDepth, maxSteps int) *Quota {
	return &Quota{maxDepth: maxDepth, maxSteps: maxSteps}
}

// Enter records the start of a dispatch of actionType. Leave must be called
// exactly once for every Enter, including when Enter returns an error.
func (q *Quota) Enter(actionType string) error {
	if q.depth == 0 {
		q.root = actionType
		q.steps = 0
	}
	q.depth++
	q.steps++

	if q.maxDepth > 0 && q.depth > q.maxDepth {
		return &DepthExceededError{
			RootType:   q.root,
			ActionType: actionType,
			Depth:      q.depth,
			Limit:      q.maxDepth,
		}
	}
	if q.maxSteps > 0 && q.steps > q.maxSteps {
		return &StepsExceededError{
			RootType: q.root,
			Steps:    q.steps,
			Limit:    q.maxSteps,
		}
	}
	return nil
}

// Leave records the end of a dispatch.
func (q *Quota) Leave() {
	if q.depth > 0 {
		q.depth--
	}
}

// Depth returns the current nesting depth. 0 means no dispatch in flight.
func (q *Quota) Depth() int {
	return q.depth
}

// Steps returns the dispatches counted under the current (or last) root.
func (q *Quota) Steps() int {
	return q.steps
}

// DepthExceededError is raised when nested dispatch goes deeper than the
// configured limit.
type DepthExceededError struct {
	RootType   string // Action type of the root dispatch
	ActionType string // Action type that crossed the limit
	Depth      int
	Limit      int
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("dispatch of %s (root %s) exceeded max depth: %d > %d limit",
		e.ActionType, e.RootType, e.Depth, e.Limit)
}

// StepsExceededError is raised when one root dispatch causes more nested
// dispatches than the configured limit.
type StepsExceededError struct {
	RootType string // Action type of the root dispatch
	Steps    int
	Limit    int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("root dispatch %s exceeded max steps quota: %d steps > %d limit",
		e.RootType, e.Steps, e.Limit)
}

// IsQuotaError returns true if err is a DepthExceededError or a
// StepsExceededError.
func IsQuotaError(err error) bool {
	var de *DepthExceededError
	var se *StepsExceededError
	return errors.As(err, &de) || errors.As(err, &se)
}
