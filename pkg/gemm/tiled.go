// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"sync"

	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"github.com/gomlx/tilegemm/pkg/support/xsync"
	"k8s.io/klog/v2"
)

// This file contains the "tiled" kernel, with the full hierarchy of execution units:
//
//	for each block (blockRow, blockCol) of the grid          -- dispatched by Env.Pool
//	  for each thread (threadRow, threadCol) of the block    -- one goroutine each
//	    for each outer chunk of K (ReductionOuter rows):
//	      cooperatively stage the A_T and B panels to the block-shared scope
//	      barrier
//	      for each inner chunk (ReductionInner rows):
//	        stage the thread's columns of the panels to the thread-local scope
//	        for each virtual thread tile (vthreadRow, vthreadCol):
//	          accumulate the chunk into its micro-tile accumulator
//	      barrier
//	    write back each virtual thread's micro-tile
//
// The only shared mutable state of a block is its shared buffers: they are written only between
// the barrier that ends an outer chunk and the barrier that starts the next one.

// tiledBlock holds the parameters common to all the threads of one block.
type tiledBlock struct {
	at, b, c           *matrix.Matrix
	plan               TilingPlan
	rows, cols         axisFactors
	env                *Env
	blockRow, blockCol int

	sharedA, sharedB []float32
	barrier          *xsync.Barrier
}

func tiledKernel(at, b, c *matrix.Matrix, plan TilingPlan, env *Env) {
	grid := plan.Grid(at.Cols, b.Cols)
	rows, cols := plan.rowAxis(), plan.colAxis()
	if klog.V(2).Enabled() {
		klog.Infof("gemm.tiled: %d blocks (%dx%d) of %d threads, %d workers",
			grid.NumBlocks(), grid.Rows, grid.Cols, plan.ThreadsPerBlock(), env.Pool.Workers(grid.NumBlocks()))
	}
	env.Pool.RunGrid(grid.NumBlocks(), func(_, blockIdx int) {
		block := &tiledBlock{
			at: at, b: b, c: c,
			plan: plan,
			rows: rows, cols: cols,
			env:      env,
			blockRow: blockIdx / grid.Cols,
			blockCol: blockIdx % grid.Cols,
		}
		block.run()
	})
}

// run allocates the block-shared buffers, runs all the threads of the block and waits for them.
func (blk *tiledBlock) run() {
	plan := blk.plan
	sharedARef, sharedA := blk.env.Alloc.Alloc(ScopeShared, plan.ReductionOuter*plan.BlockRows)
	sharedBRef, sharedB := blk.env.Alloc.Alloc(ScopeShared, plan.ReductionOuter*plan.BlockCols)
	defer func() {
		blk.env.Alloc.Release(sharedARef)
		blk.env.Alloc.Release(sharedBRef)
	}()
	blk.sharedA, blk.sharedB = sharedA, sharedB

	numThreads := plan.ThreadsPerBlock()
	blk.barrier = xsync.NewBarrier(numThreads)
	var wg sync.WaitGroup
	wg.Add(numThreads)
	for tid := range numThreads {
		go func() {
			defer wg.Done()
			blk.thread(tid)
		}()
	}
	wg.Wait()
}

// thread is the work of one physical thread: it computes one micro-tile per virtual thread.
func (blk *tiledBlock) thread(tid int) {
	plan := blk.plan
	numThreads := plan.ThreadsPerBlock()
	threadRow, threadCol := tid/plan.ThreadCols, tid%plan.ThreadCols
	k := blk.at.Rows
	blockRowStart := blk.blockRow * plan.BlockRows
	blockColStart := blk.blockCol * plan.BlockCols

	localAWidth, localBWidth := blk.rows.locals(), blk.cols.locals()
	localARef, localA := blk.env.Alloc.Alloc(ScopeLocal, plan.ReductionInner*localAWidth)
	localBRef, localB := blk.env.Alloc.Alloc(ScopeLocal, plan.ReductionInner*localBWidth)
	defer func() {
		blk.env.Alloc.Release(localARef)
		blk.env.Alloc.Release(localBRef)
	}()

	// One accumulator per virtual-thread tile, zero-initialized.
	var accs [MaxVThreadTiles]AccumulatorTile

	for kOuter := 0; kOuter < k; kOuter += plan.ReductionOuter {
		stageShared(blk.at, blk.sharedA, kOuter, plan.ReductionOuter, blockRowStart, plan.BlockRows, tid, numThreads)
		stageShared(blk.b, blk.sharedB, kOuter, plan.ReductionOuter, blockColStart, plan.BlockCols, tid, numThreads)
		blk.barrier.Wait() // Panels complete.

		for kInner := 0; kInner < plan.ReductionOuter; kInner += plan.ReductionInner {
			stageLocal(blk.sharedA, localA, kInner, plan.ReductionInner, blk.rows, threadRow)
			stageLocal(blk.sharedB, localB, kInner, plan.ReductionInner, blk.cols, threadCol)
			for vthreadRow := range plan.VThreadRows {
				for vthreadCol := range plan.VThreadCols {
					accumulate(&accs[vthreadRow*plan.VThreadCols+vthreadCol],
						localA, localB, plan.ReductionInner,
						localAWidth, vthreadRow*plan.MicroRows,
						localBWidth, vthreadCol*plan.MicroCols,
						plan.MicroRows, plan.MicroCols)
				}
			}
		}
		blk.barrier.Wait() // All threads done reading the panels.
	}

	for vthreadRow := range plan.VThreadRows {
		row := blk.rows.index(AxisCoord{Block: blk.blockRow, VThread: vthreadRow, Thread: threadRow})
		for vthreadCol := range plan.VThreadCols {
			col := blk.cols.index(AxisCoord{Block: blk.blockCol, VThread: vthreadCol, Thread: threadCol})
			writeback(blk.c, &accs[vthreadRow*plan.VThreadCols+vthreadCol], row, col,
				plan.MicroRows, plan.MicroCols, plan.VectorWidth, blk.env.Hook)
		}
	}
}
