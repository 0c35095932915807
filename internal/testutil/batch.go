package testutil

// FixedTokenGenerator generates the same sort batch token every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedTokenGenerator produces byte-identical
// traces.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed batch token generator.
//
// If token is empty, Generate() returns "test-batch-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-batch-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
//
// Implements engine.TokenGenerator interface.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
