package executor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SeededFromInitial(t *testing.T) {
	initial := map[string]any{"a": 1, "b": "two"}
	s := NewStore(initial)

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, s.Len())

	// Mutating the caller's map must not leak into the store.
	initial["c"] = 3
	_, ok = s.Get("c")
	assert.False(t, ok)
}

func TestStore_SetAndSetAll(t *testing.T) {
	s := NewStore(nil)
	s.Set("x", 1)
	s.SetAll(map[string]any{"y": 2, "z": 3})

	assert.Equal(t, 3, s.Len())
	v, ok := s.Get("z")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore(map[string]any{"a": 1})
	snap := s.Snapshot()
	snap["b"] = 2

	_, ok := s.Get("b")
	assert.False(t, ok)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(fmt.Sprintf("key_%d", i), i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
