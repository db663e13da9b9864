package store

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator mints dispatch tokens. A token groups a root dispatch with
// every dispatch its reactions cause, so one user action reads back as one
// trace.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-sortable UUIDv7 tokens, so ListTokens output
// sorted by token is also sorted by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 (36 characters).
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predetermined tokens in order, one per root
// dispatch. Used to pin tokens in scenario runs and golden traces.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewSequenceGenerator creates a generator over tokens.
//
//	gen := NewSequenceGenerator("t-1", "t-2")
//	gen.Generate() // "t-1"
//	gen.Generate() // "t-2"
//	gen.Generate() // panic: tokens exhausted
func NewSequenceGenerator(tokens ...string) *SequenceGenerator {
	return &SequenceGenerator{tokens: tokens}
}

// Generate returns the next token. Panics once all tokens are consumed, so
// a scenario that dispatches more roots than it declared fails loudly.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("SequenceGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// Remaining returns how many tokens are left.
func (g *SequenceGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens) - g.idx
}

// SessionGenerator mints one UUIDv7 on first use and returns it for every
// later root dispatch, so a whole session of root dispatches reads back
// as one trace and can be replayed in order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SessionGenerator struct {
	mu    sync.Mutex
	token string
}

// Generate returns the session token, minting it on the first call.
func (g *SessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == "" {
		g.token = UUIDv7Generator{}.Generate()
	}
	return g.token
}
