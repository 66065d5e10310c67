// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Scope is the memory scope of a buffer: its visibility and lifetime.
type Scope int

const (
	// ScopeGlobal buffers are visible to all execution units, and live for the whole call (or longer):
	// the operands and the output.
	ScopeGlobal Scope = iota

	// ScopeShared buffers are visible to all threads of one block, and live for the block's computation.
	ScopeShared

	// ScopeLocal buffers are private to one thread.
	ScopeLocal

	numScopes
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeShared:
		return "shared"
	case ScopeLocal:
		return "local"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Allocator provides zero-initialized float32 buffers for the kernels' memory scopes.
//
// It must be safe for concurrent use: every block and thread allocates its own buffers.
type Allocator interface {
	// Alloc returns a zero-initialized buffer with size elements for the given scope,
	// and a reference to be given to Release once the buffer is no longer needed.
	Alloc(scope Scope, size int) (ref any, data []float32)

	// Release returns a buffer obtained with Alloc. The data must not be used afterward.
	Release(ref any)
}

// ScopeStats are the counters of buffers allocated for one Scope.
type ScopeStats struct {
	// Allocations is the number of calls to Alloc.
	Allocations int64

	// Elements is the total number of float32 values allocated.
	Elements int64
}

// Bytes is the total number of bytes allocated.
func (s ScopeStats) Bytes() int64 { return 4 * s.Elements }

type poolKey struct {
	scope Scope
	size  int
}

// poolBuffer is the reference returned by PoolAllocator.Alloc.
type poolBuffer struct {
	key  poolKey
	data []float32
}

// PoolAllocator is the default Allocator: it reuses released buffers through a sync.Pool
// per (scope, size), and keeps per-scope statistics.
type PoolAllocator struct {
	// pools maps poolKey to *sync.Pool.
	pools sync.Map

	allocations [numScopes]atomic.Int64
	elements    [numScopes]atomic.Int64
}

// Compile-time check that PoolAllocator implements Allocator.
var _ Allocator = (*PoolAllocator)(nil)

// NewPoolAllocator creates a new PoolAllocator.
func NewPoolAllocator() *PoolAllocator {
	return &PoolAllocator{}
}

func (a *PoolAllocator) getPool(key poolKey) *sync.Pool {
	pool, ok := a.pools.Load(key)
	if !ok {
		pool, _ = a.pools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return &poolBuffer{key: key, data: make([]float32, key.size)}
			},
		})
	}
	return pool.(*sync.Pool)
}

// Alloc implements Allocator.
func (a *PoolAllocator) Alloc(scope Scope, size int) (ref any, data []float32) {
	key := poolKey{scope: scope, size: size}
	buf := a.getPool(key).Get().(*poolBuffer)
	clear(buf.data)
	if scope >= 0 && scope < numScopes {
		a.allocations[scope].Add(1)
		a.elements[scope].Add(int64(size))
	}
	return buf, buf.data
}

// Release implements Allocator.
func (a *PoolAllocator) Release(ref any) {
	buf, ok := ref.(*poolBuffer)
	if !ok || buf == nil {
		return
	}
	a.getPool(buf.key).Put(buf)
}

// Stats returns the counters for the given scope, since creation or the last ResetStats.
func (a *PoolAllocator) Stats(scope Scope) ScopeStats {
	if scope < 0 || scope >= numScopes {
		return ScopeStats{}
	}
	return ScopeStats{
		Allocations: a.allocations[scope].Load(),
		Elements:    a.elements[scope].Load(),
	}
}

// ResetStats zeroes all counters.
func (a *PoolAllocator) ResetStats() {
	for scope := range numScopes {
		a.allocations[scope].Store(0)
		a.elements[scope].Store(0)
	}
}
