// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeString(t *testing.T) {
	assert.Equal(t, "global", ScopeGlobal.String())
	assert.Equal(t, "shared", ScopeShared.String())
	assert.Equal(t, "local", ScopeLocal.String())
	assert.Equal(t, "Scope(7)", Scope(7).String())
}

func TestPoolAllocator(t *testing.T) {
	alloc := NewPoolAllocator()
	ref, data := alloc.Alloc(ScopeShared, 16)
	require.Len(t, data, 16)
	for ii := range data {
		data[ii] = float32(ii + 1)
	}
	alloc.Release(ref)

	// Reused or not, buffers are always returned zeroed.
	for range 3 {
		ref, data = alloc.Alloc(ScopeShared, 16)
		require.Len(t, data, 16)
		for ii, v := range data {
			require.Zero(t, v, "element %d of a new buffer is not zero", ii)
		}
		data[0] = 7
		alloc.Release(ref)
	}

	_, local := alloc.Alloc(ScopeLocal, 3)
	assert.Len(t, local, 3)
	alloc.Release(nil)
	alloc.Release("not a buffer")

	assert.Equal(t, ScopeStats{Allocations: 4, Elements: 64}, alloc.Stats(ScopeShared))
	assert.Equal(t, int64(256), alloc.Stats(ScopeShared).Bytes())
	assert.Equal(t, ScopeStats{Allocations: 1, Elements: 3}, alloc.Stats(ScopeLocal))
	assert.Equal(t, ScopeStats{}, alloc.Stats(ScopeGlobal))
	assert.Equal(t, ScopeStats{}, alloc.Stats(Scope(-1)))

	alloc.ResetStats()
	assert.Equal(t, ScopeStats{}, alloc.Stats(ScopeShared))
}

func TestPoolAllocatorConcurrent(t *testing.T) {
	alloc := NewPoolAllocator()
	const numGoroutines, numAllocs = 8, 100
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := range numGoroutines {
		go func() {
			defer wg.Done()
			for ii := range numAllocs {
				ref, data := alloc.Alloc(ScopeLocal, 1+ii%4)
				for jj := range data {
					if data[jj] != 0 {
						t.Errorf("goroutine %d: buffer not zeroed", g)
						return
					}
					data[jj] = float32(g)
				}
				alloc.Release(ref)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(numGoroutines*numAllocs), alloc.Stats(ScopeLocal).Allocations)
}
