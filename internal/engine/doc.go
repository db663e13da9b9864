// Package engine implements the ruleware rule-dispatch middleware.
//
// A rule pairs a set of action types, a condition over the current facts
// (state snapshot plus dispatched action), and a reaction shaped like a
// middleware. For every dispatched action the engine:
//
//  1. keeps rules whose ActionTypes contain action.Type (exact match)
//  2. reads the store state once and evaluates the surviving conditions
//  3. folds the matching reactions right-to-left around next
//  4. invokes the fold with the action and returns its result
//
// When no rule matches, the action goes straight to next and the engine is
// indistinguishable from an empty middleware chain.
//
// ORDERING:
// Rules are held in an index-ordered slice copied at construction. Filter
// order and nesting order both follow declaration order: the first matching
// rule is the outermost wrapper, so with two matching rules R1 and R2 the
// observed order is R1-before, R2-before, next, R2-after, R1-after.
//
// CONCURRENCY:
// Dispatch is synchronous and runs on the caller's stack. A reaction may
// dispatch further actions before or after calling next; that re-enters the
// whole chain. The engine keeps no mutable state after New returns, so
// re-entry needs no locking.
//
// ERRORS:
// Malformed rules fail New with *MalformedRuleError. Panics raised by
// conditions, reactions or observers propagate unchanged.
package engine
