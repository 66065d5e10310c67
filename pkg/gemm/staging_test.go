// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"testing"

	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"github.com/gomlx/tilegemm/pkg/support/xslices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageShared(t *testing.T) {
	src, err := matrix.FromFlat(8, 12, xslices.Iota(float32(0), 8*12))
	require.NoError(t, err)
	const kStart, kLen, colStart, width, numThreads = 4, 4, 4, 8, 3

	// Each thread writes to its own copy, to check that the panel is split among threads without overlap.
	copies := make([]int, kLen*width)
	merged := make([]float32, kLen*width)
	for tid := range numThreads {
		dst := xslices.SliceWithValue(kLen*width, float32(-1))
		stageShared(src, dst, kStart, kLen, colStart, width, tid, numThreads)
		for ii, v := range dst {
			if v != -1 {
				copies[ii]++
				merged[ii] = v
			}
		}
	}
	for r := range kLen {
		for c := range width {
			assert.Equal(t, 1, copies[r*width+c], "panel element (%d, %d) copied %d times", r, c, copies[r*width+c])
			assert.Equal(t, src.At(kStart+r, colStart+c), merged[r*width+c], "panel element (%d, %d)", r, c)
		}
	}
}

func TestStageLocal(t *testing.T) {
	plan := SquarePlan(2, 2, 2, 4, 2)
	axis := plan.colAxis()
	require.Equal(t, 8, axis.block)
	shared := xslices.Iota(float32(0), plan.ReductionOuter*axis.block)
	const kOffset, kLen, thread = 2, 2, 1
	dst := make([]float32, kLen*axis.locals())
	stageLocal(shared, dst, kOffset, kLen, axis, thread)
	for k := range kLen {
		for v := range axis.vthreads {
			for u := range axis.micro {
				col := axis.index(AxisCoord{VThread: v, Thread: thread, Micro: u})
				assert.Equal(t, shared[(kOffset+k)*axis.block+col], dst[k*axis.locals()+v*axis.micro+u],
					"k=%d, vthread=%d, micro=%d", k, v, u)
			}
		}
	}
	// Explicit values for the first row: columns {2, 3} and {6, 7} of panel row 2.
	assert.Equal(t, []float32{18, 19, 22, 23}, dst[:4])
}

func TestStageWhole(t *testing.T) {
	src := matrix.New(5, 3)
	for ii := range src.Flat {
		src.Flat[ii] = float32(ii + 1)
	}
	dst := make([]float32, src.Size())
	for tid := range 2 {
		stageWhole(src, dst, tid, 2)
	}
	assert.Equal(t, src.Flat, dst)
}
