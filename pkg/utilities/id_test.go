package utilities

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorUnique(t *testing.T) {
	g := NewIDGenerator(3)
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				id := g.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestIDGeneratorFallsBackToKSUID(t *testing.T) {
	g := NewIDGenerator(5000) // out of range for a snowflake node
	id := g.Next()
	require.Len(t, id, 27)
	assert.LessOrEqual(t, len(NewIDGenerator(1).Next()), 32)

	var nilGen *IDGenerator
	assert.Len(t, nilGen.Next(), 27)
}
