// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/tilegemm/pkg/core/matrix"
)

// Reference computes C = A x B with the naive triple loop, where at holds A transposed
// (shaped [K, M]) and b is shaped [K, N]:
//
//	C[i, j] = Σ_k at[k, i] * b[k, j]
//
// The sum starts at 0 and goes over k in increasing order, with every product rounded to
// float32: it is bit-for-bit what the tiled kernels compute.
//
// It doesn't validate its inputs, and panics if at.Rows != b.Rows.
func Reference(at, b *matrix.Matrix) *matrix.Matrix {
	c := matrix.New(at.Cols, b.Cols)
	referenceInto(at, b, c, nil)
	return c
}

func referenceInto(at, b, c *matrix.Matrix, hook WriteHook) {
	m, n, k := at.Cols, b.Cols, at.Rows
	if b.Rows != k {
		panic("gemm.Reference: A_transposed and B have different number of rows")
	}
	row := make([]float32, n)
	for i := range m {
		for j := range n {
			var sum float32
			aIdx, bIdx := i, j
			for range k {
				sum += float32(at.Flat[aIdx] * b.Flat[bIdx])
				aIdx += m
				bIdx += n
			}
			row[j] = sum
		}
		storeRow(c, row, i, 0, 1, hook)
	}
}

func referenceKernel(at, b, c *matrix.Matrix, _ TilingPlan, env *Env) {
	referenceInto(at, b, c, env.Hook)
}
