// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/tilegemm/pkg/core/matrix"
)

// This file contains the Staging Loader: the two copies that bring operand values
// closer to the threads that use them:
//
//   - global -> shared: all threads of a block cooperate to copy a [kLen, blockWidth] panel of
//     an operand (rows of the reduction axis, the block's columns) into the block-shared buffer.
//   - shared -> local: each thread copies from the panel the columns it owns (one micro-tile
//     per virtual thread) for a chunk of the reduction axis.

// stageShared copies the panel src[kStart:kStart+kLen, colStart:colStart+width] into
// dst, shaped [kLen, width].
//
// The rows of the panel are split among numThreads cooperating threads: thread tid copies
// rows tid, tid+numThreads, tid+2*numThreads, ... So after all threads return, every value of
// the panel was copied exactly once.
func stageShared(src *matrix.Matrix, dst []float32, kStart, kLen, colStart, width, tid, numThreads int) {
	for row := tid; row < kLen; row += numThreads {
		srcIdx := (kStart+row)*src.Cols + colStart
		copy(dst[row*width:(row+1)*width], src.Flat[srcIdx:srcIdx+width])
	}
}

// stageLocal copies to dst the values of the shared panel owned by thread along the given axis,
// for the panel rows [kOffset, kOffset+kLen).
//
//   - shared: the block-shared panel, shaped [kOuter, axis.block].
//   - dst: the thread-local buffer, shaped [kLen, axis.vthreads*axis.micro]: the micro-tile
//     of each virtual thread, side by side.
func stageLocal(shared, dst []float32, kOffset, kLen int, axis axisFactors, thread int) {
	localWidth := axis.locals()
	vtile := axis.vtile()
	for k := range kLen {
		srcRow := shared[(kOffset+k)*axis.block : (kOffset+k+1)*axis.block]
		dstRow := dst[k*localWidth : (k+1)*localWidth]
		srcIdx := thread * axis.micro
		for v := range axis.vthreads {
			copy(dstRow[v*axis.micro:(v+1)*axis.micro], srcRow[srcIdx:srcIdx+axis.micro])
			srcIdx += vtile
		}
	}
}

// stageWhole copies all of src into dst, with numThreads cooperating threads.
// It is the degenerate form of stageShared, used to stage whole operands.
func stageWhole(src *matrix.Matrix, dst []float32, tid, numThreads int) {
	stageShared(src, dst, 0, src.Rows, 0, src.Cols, tid, numThreads)
}
