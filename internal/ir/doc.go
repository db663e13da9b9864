// Package ir provides the canonical value types shared by every ruleware package.
//
// The package holds data only: sealed value types, actions, declarative rule and
// reducer specs, canonical JSON and content hashing. It imports nothing internal,
// so every other package can depend on it without cycles.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - State snapshots are never mutated in place; path writes copy on write
//   - All JSON tags use snake_case, except the camelCase rule fields that
//     mirror the declarative format (actionTypes)
package ir
