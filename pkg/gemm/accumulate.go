// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

// AccumulatorTile holds the partial sums of one micro-tile, row-major with MicroCols columns.
//
// Only the first MicroRows*MicroCols cells are used. It is private to one thread, and
// the zero value is ready to use.
type AccumulatorTile [MaxAccumulatorCells]float32

// Reset zeroes all cells.
func (t *AccumulatorTile) Reset() {
	*t = AccumulatorTile{}
}

// accumulate adds to acc the products of a chunk of kLen reduction steps:
//
//	acc[r, c] += localA[k, aOffset+r] * localB[k, bOffset+c]
//
// for k in increasing order. localA rows have aStride values and localB rows bStride values.
//
// Every product is explicitly rounded to float32 before it is added, which prevents the compiler
// from fusing the multiply-add (see "Floating-point operators" in the Go language reference): for any tiling,
// each output is then computed with exactly the same sequence of roundings as the reference.
func accumulate(acc *AccumulatorTile, localA, localB []float32, kLen, aStride, aOffset, bStride, bOffset,
	microRows, microCols int) {
	if microRows == 4 && microCols == 4 {
		accumulate4x4(acc, localA, localB, kLen, aStride, aOffset, bStride, bOffset)
		return
	}
	for k := range kLen {
		aIdx := k*aStride + aOffset
		bIdx := k*bStride + bOffset
		aValues := localA[aIdx : aIdx+microRows]
		bValues := localB[bIdx : bIdx+microCols]
		for r, a := range aValues {
			accRow := acc[r*microCols : (r+1)*microCols]
			_ = accRow[len(bValues)-1]
			for c, b := range bValues {
				accRow[c] += float32(a * b)
			}
		}
	}
}

// accumulate4x4 is accumulate for 4x4 micro-tiles, with the accumulators held in local variables
// for the duration of the chunk.
func accumulate4x4(acc *AccumulatorTile, localA, localB []float32, kLen, aStride, aOffset, bStride, bOffset int) {
	c00, c01, c02, c03 := acc[0], acc[1], acc[2], acc[3]
	c10, c11, c12, c13 := acc[4], acc[5], acc[6], acc[7]
	c20, c21, c22, c23 := acc[8], acc[9], acc[10], acc[11]
	c30, c31, c32, c33 := acc[12], acc[13], acc[14], acc[15]

	aIdx, bIdx := aOffset, bOffset
	for range kLen {
		// Force early bound-check to eliminate bounds checks below.
		a := localA[aIdx : aIdx+4 : aIdx+4]
		b := localB[bIdx : bIdx+4 : bIdx+4]
		a0, a1, a2, a3 := a[0], a[1], a[2], a[3]
		b0, b1, b2, b3 := b[0], b[1], b[2], b[3]

		c00 += float32(a0 * b0)
		c01 += float32(a0 * b1)
		c02 += float32(a0 * b2)
		c03 += float32(a0 * b3)

		c10 += float32(a1 * b0)
		c11 += float32(a1 * b1)
		c12 += float32(a1 * b2)
		c13 += float32(a1 * b3)

		c20 += float32(a2 * b0)
		c21 += float32(a2 * b1)
		c22 += float32(a2 * b2)
		c23 += float32(a2 * b3)

		c30 += float32(a3 * b0)
		c31 += float32(a3 * b1)
		c32 += float32(a3 * b2)
		c33 += float32(a3 * b3)

		aIdx += aStride
		bIdx += bStride
	}

	acc[0], acc[1], acc[2], acc[3] = c00, c01, c02, c03
	acc[4], acc[5], acc[6], acc[7] = c10, c11, c12, c13
	acc[8], acc[9], acc[10], acc[11] = c20, c21, c22, c23
	acc[12], acc[13], acc[14], acc[15] = c30, c31, c32, c33
}
