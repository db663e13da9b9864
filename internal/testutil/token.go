package testutil

// DefaultToken is used when a scenario does not pin a token.
const DefaultToken = "test-token-default"

// FixedTokenGenerator returns the same token for every root dispatch, so
// all dispatches of a scenario land in one trace.
//
// Unlike store.SequenceGenerator, it never runs out.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator for token, or DefaultToken
// when token is empty.
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = DefaultToken
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token. Implements store.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
