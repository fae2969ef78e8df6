package sid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorUniqueSequential(t *testing.T) {
	a := NewAllocator()
	seen := make(map[uint64]bool)
	for i := 0; i < 5_000; i++ {
		v := a.Next()
		require.False(t, seen[v], "sid %d reused", v)
		seen[v] = true
	}
}

func TestAllocatorUniqueConcurrent(t *testing.T) {
	a := NewAllocator()
	const goroutines = 32
	const perGoroutine = 2_000

	results := make(chan uint64, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				results <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, goroutines*perGoroutine)
	for v := range results {
		assert.False(t, seen[v], "sid %d reused across goroutines", v)
		seen[v] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestBandExhaustionRefills(t *testing.T) {
	a := NewAllocator()
	for i := uint64(0); i < bandSize+10; i++ {
		_ = a.Next()
	}
	// No assertion beyond "did not panic/hang"; uniqueness already covered above.
}
