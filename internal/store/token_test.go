package store

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Version(t *testing.T) {
	token := UUIDv7Generator{}.Generate()

	assert.Len(t, token, 36)
	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_SortsByCreation(t *testing.T) {
	gen := UUIDv7Generator{}
	prev := gen.Generate()
	for i := 0; i < 100; i++ {
		next := gen.Generate()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	tokens := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens <- gen.Generate()
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		require.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestSequenceGenerator_InOrder(t *testing.T) {
	gen := NewSequenceGenerator("t-1", "t-2")

	assert.Equal(t, 2, gen.Remaining())
	assert.Equal(t, "t-1", gen.Generate())
	assert.Equal(t, "t-2", gen.Generate())
	assert.Equal(t, 0, gen.Remaining())
	assert.Panics(t, func() { gen.Generate() })
}

func TestSequenceGenerator_Empty(t *testing.T) {
	assert.Panics(t, func() { NewSequenceGenerator().Generate() })
}

func TestSessionGenerator_ReusesToken(t *testing.T) {
	var gen SessionGenerator
	first := gen.Generate()
	assert.Equal(t, first, gen.Generate())

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	var other SessionGenerator
	assert.NotEqual(t, first, other.Generate())
}
