// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// blasKernel delegates to gonum's BLAS implementation, ignoring the plan's tiling.
//
// It is registered as a baseline: its reduction order differs from the other kernels, so its
// results match them only within rounding tolerance.
func blasKernel(at, b, c *matrix.Matrix, _ TilingPlan, env *Env) {
	m, n, k := at.Cols, b.Cols, at.Rows
	a := blas32.General{Rows: k, Cols: m, Stride: m, Data: at.Flat}
	bGeneral := blas32.General{Rows: k, Cols: n, Stride: n, Data: b.Flat}
	cGeneral := blas32.General{Rows: m, Cols: n, Stride: n, Data: c.Flat}
	blas32.Gemm(blas.Trans, blas.NoTrans, 1, a, bGeneral, 0, cGeneral)
	if env.Hook != nil {
		for i := range m {
			env.Hook(i, 0, n)
		}
	}
}
