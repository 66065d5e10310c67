// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/tilegemm/pkg/core/matrix"
)

// wholeKernel is the simpler "whole" variant: the operands are staged in full to the shared
// scope and from there to the local scope, and the output is accumulated in full in a local
// buffer before being written back. Only the block extents of the plan are used, to split
// the output among the workers.
//
// It stages much more memory than the tiled kernel, and it is kept as a baseline.
func wholeKernel(at, b, c *matrix.Matrix, plan TilingPlan, env *Env) {
	m, n, k := at.Cols, b.Cols, at.Rows
	var refs []any
	alloc := func(scope Scope, size int) []float32 {
		ref, data := env.Alloc.Alloc(scope, size)
		refs = append(refs, ref)
		return data
	}
	defer func() {
		for _, ref := range refs {
			env.Alloc.Release(ref)
		}
	}()

	// Each RunGrid returns only after all its units are done: that is the barrier between stages.
	stage := func(src *matrix.Matrix, dst []float32) {
		numStagers := max(env.Pool.Workers(src.Rows), 1)
		env.Pool.RunGrid(numStagers, func(_, tid int) {
			stageWhole(src, dst, tid, numStagers)
		})
	}
	atShared := &matrix.Matrix{Rows: k, Cols: m, Flat: alloc(ScopeShared, k*m)}
	bShared := &matrix.Matrix{Rows: k, Cols: n, Flat: alloc(ScopeShared, k*n)}
	stage(at, atShared.Flat)
	stage(b, bShared.Flat)
	atLocal := alloc(ScopeLocal, k*m)
	bLocal := alloc(ScopeLocal, k*n)
	stage(atShared, atLocal)
	stage(bShared, bLocal)

	cLocal := alloc(ScopeLocal, m*n)
	grid := plan.Grid(m, n)
	env.Pool.RunGrid(grid.NumBlocks(), func(_, blockIdx int) {
		rowStart := (blockIdx / grid.Cols) * plan.BlockRows
		colStart := (blockIdx % grid.Cols) * plan.BlockCols
		for i := rowStart; i < rowStart+plan.BlockRows; i++ {
			for j := colStart; j < colStart+plan.BlockCols; j++ {
				var sum float32
				aIdx, bIdx := i, j
				for range k {
					sum += float32(atLocal[aIdx] * bLocal[bIdx])
					aIdx += m
					bIdx += n
				}
				cLocal[i*n+j] = sum
			}
		}
	})

	env.Pool.RunGrid(grid.Rows, func(_, blockRow int) {
		for i := blockRow * plan.BlockRows; i < (blockRow+1)*plan.BlockRows; i++ {
			storeRow(c, cLocal[i*n:(i+1)*n], i, 0, plan.VectorWidth, env.Hook)
		}
	})
}
