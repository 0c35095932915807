package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidToken(t *testing.T) {
	token := UUIDv7Generator{}.Generate()

	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`, token)
	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_UniqueAcrossGoroutines(t *testing.T) {
	gen := UUIDv7Generator{}
	const n = 200

	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens <- gen.Generate()
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool, n)
	for token := range tokens {
		require.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
	assert.Len(t, seen, n)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("sort-a", "sort-b")
	assert.Equal(t, "sort-a", gen.Generate())
	assert.Equal(t, "sort-b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })

	assert.Panics(t, func() { NewFixedGenerator().Generate() })
}

// Each captured batch draws a fresh token from the generator.
func TestCapture_DrawsOneTokenPerBatch(t *testing.T) {
	f := newFixture(t, "web,de", WithBatchTokens(NewFixedGenerator("first", "second")))

	b1, err := f.engine.Capture(f.ctx, nil)
	require.NoError(t, err)
	b2, err := f.engine.Capture(f.ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, "first", b1.Token)
	assert.Equal(t, "second", b2.Token)
	assert.Less(t, b1.Generation, b2.Generation)
}
