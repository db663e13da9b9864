// Package store provides the SQLite-backed dispatch journal.
//
// The journal is append-only:
//   - dispatches: every action that entered the middleware chain
//   - rule_firings: which rules fired for a dispatch, in chain position order
//   - completions: the state hash after a dispatch returned normally
//
// A root dispatch mints a token; nested dispatches issued by reactions
// inherit it and record their parent, so a token reads back as a tree.
//
// # Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from a Sequencer, NEVER timestamps
//
// Deterministic reads:
//   - All queries ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Content-addressed IDs:
//   - Dispatch IDs are ir.DispatchID(token, action, seq), so rewriting a
//     row with identical content is a no-op (ON CONFLICT DO NOTHING)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
