// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/tilegemm/pkg/core/matrix"
)

// WriteHook is called after every vector store to the output: width contiguous values
// were written starting at output element (row, col).
//
// It is called concurrently by the threads of all blocks, and must be safe for concurrent use.
type WriteHook func(row, col, width int)

// storeRow copies src to output row `row`, starting at column col, in stores of vectorWidth values.
// len(src) must be a multiple of vectorWidth.
func storeRow(c *matrix.Matrix, src []float32, row, col, vectorWidth int, hook WriteHook) {
	dstIdx := row*c.Cols + col
	dst := c.Flat[dstIdx : dstIdx+len(src)]
	for v := 0; v < len(src); v += vectorWidth {
		copy(dst[v:v+vectorWidth], src[v:v+vectorWidth])
		if hook != nil {
			hook(row, col+v, vectorWidth)
		}
	}
}

// writeback copies a fully reduced micro-tile to the output, with its top-left corner at (row, col).
// Each row of the micro-tile is contiguous in the output, and is written in vectors of vectorWidth.
func writeback(c *matrix.Matrix, acc *AccumulatorTile, row, col, microRows, microCols, vectorWidth int, hook WriteHook) {
	for r := range microRows {
		storeRow(c, acc[r*microCols:(r+1)*microCols], row+r, col, vectorWidth, hook)
	}
}
