// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/pkg/errors"
)

// ErrConfiguration is wrapped by every error caused by an invalid TilingPlan, or by operands
// whose dimensions don't fit the plan. Test for it with errors.Is.
//
// These errors are always returned before any memory is touched.
var ErrConfiguration = errors.New("invalid tiling configuration")

const (
	// MaxAccumulatorCells is the capacity of an AccumulatorTile: MicroRows*MicroCols must not exceed it.
	MaxAccumulatorCells = 64

	// MaxVThreadTiles is the maximum number of virtual-thread tiles (VThreadRows*VThreadCols)
	// a physical thread can own: all its accumulators live in one fixed-size array.
	MaxVThreadTiles = 16

	// DefaultVectorWidth is the number of float32 values written per store at writeback.
	DefaultVectorWidth = 4
)

// TilingPlan describes how the output and the reduction axis are decomposed among the execution units.
//
// Along the rows axis (and analogously for the columns axis):
//
//	BlockRows = VThreadRows * ThreadRows * MicroRows
//
// and an output row i is decomposed as
//
//	i = block*BlockRows + vthread*(ThreadRows*MicroRows) + thread*MicroRows + micro
//
// The reduction axis K is traversed in chunks of ReductionOuter rows, staged into the
// block-shared scope, each traversed in chunks of ReductionInner rows, staged into the
// thread-local scope.
//
// Tiling is always exact: there is no handling of remainders, so the output and reduction
// extents must be divisible by the corresponding block and chunk sizes. See Validate.
type TilingPlan struct {
	// BlockRows, BlockCols is the output tile computed by one block.
	BlockRows, BlockCols int

	// VThreadRows, VThreadCols is the number of virtual-thread splits of a block tile.
	// Every physical thread computes one micro-tile in each virtual-thread tile.
	VThreadRows, VThreadCols int

	// ThreadRows, ThreadCols is the number of physical threads per block along each axis.
	ThreadRows, ThreadCols int

	// MicroRows, MicroCols is the micro-tile held in one accumulator.
	MicroRows, MicroCols int

	// ReductionOuter is the number of K rows staged into the block-shared scope at once.
	ReductionOuter int

	// ReductionInner is the number of K rows staged into the thread-local scope at once.
	ReductionInner int

	// VectorWidth is the number of contiguous values written per store at writeback.
	VectorWidth int
}

// DefaultPlan returns the canonical configuration: 128x128 blocks, split in 2x2 virtual threads,
// 16x16 threads per block each with a 4x4 micro-tile, reduction chunks of 1024 (shared) and
// 16 (local) and writeback in vectors of 4.
//
// It is one valid configuration, not a constant of the algorithm: it requires M and N divisible
// by 128 and K divisible by 1024.
func DefaultPlan() TilingPlan {
	return TilingPlan{
		BlockRows: 128, BlockCols: 128,
		VThreadRows: 2, VThreadCols: 2,
		ThreadRows: 16, ThreadCols: 16,
		MicroRows: 4, MicroCols: 4,
		ReductionOuter: 1024,
		ReductionInner: 16,
		VectorWidth:    DefaultVectorWidth,
	}
}

// SquarePlan returns a plan with the same factors on both axes: blocks are
// vthreads*threads*micro wide. VectorWidth is the largest power of 2 <= DefaultVectorWidth that
// divides micro.
func SquarePlan(vthreads, threads, micro, reductionOuter, reductionInner int) TilingPlan {
	vectorWidth := vectorWidthFor(micro)
	block := vthreads * threads * micro
	return TilingPlan{
		BlockRows: block, BlockCols: block,
		VThreadRows: vthreads, VThreadCols: vthreads,
		ThreadRows: threads, ThreadCols: threads,
		MicroRows: micro, MicroCols: micro,
		ReductionOuter: reductionOuter,
		ReductionInner: reductionInner,
		VectorWidth:    vectorWidth,
	}
}

// vectorWidthFor returns the largest power of 2 <= DefaultVectorWidth that divides microCols.
func vectorWidthFor(microCols int) int {
	vectorWidth := DefaultVectorWidth
	for vectorWidth > 1 && microCols%vectorWidth != 0 {
		vectorWidth /= 2
	}
	return vectorWidth
}

// ThreadsPerBlock is the number of physical threads that cooperate on one block.
func (p TilingPlan) ThreadsPerBlock() int {
	return p.ThreadRows * p.ThreadCols
}

// configErrorf returns an error wrapping ErrConfiguration.
func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// ValidateFactors checks that the plan is internally consistent, independent of the matrix dimensions.
func (p TilingPlan) ValidateFactors() error {
	factors := []struct {
		name  string
		value int
	}{
		{"BlockRows", p.BlockRows}, {"BlockCols", p.BlockCols},
		{"VThreadRows", p.VThreadRows}, {"VThreadCols", p.VThreadCols},
		{"ThreadRows", p.ThreadRows}, {"ThreadCols", p.ThreadCols},
		{"MicroRows", p.MicroRows}, {"MicroCols", p.MicroCols},
		{"ReductionOuter", p.ReductionOuter}, {"ReductionInner", p.ReductionInner},
		{"VectorWidth", p.VectorWidth},
	}
	for _, f := range factors {
		if f.value <= 0 {
			return configErrorf("plan %s: %s=%d must be positive", p, f.name, f.value)
		}
	}
	if got := p.VThreadRows * p.ThreadRows * p.MicroRows; got != p.BlockRows {
		return configErrorf("plan %s: BlockRows=%d != VThreadRows(%d) x ThreadRows(%d) x MicroRows(%d) = %d",
			p, p.BlockRows, p.VThreadRows, p.ThreadRows, p.MicroRows, got)
	}
	if got := p.VThreadCols * p.ThreadCols * p.MicroCols; got != p.BlockCols {
		return configErrorf("plan %s: BlockCols=%d != VThreadCols(%d) x ThreadCols(%d) x MicroCols(%d) = %d",
			p, p.BlockCols, p.VThreadCols, p.ThreadCols, p.MicroCols, got)
	}
	if p.ReductionOuter%p.ReductionInner != 0 {
		return configErrorf("plan %s: ReductionOuter=%d is not divisible by ReductionInner=%d",
			p, p.ReductionOuter, p.ReductionInner)
	}
	if p.MicroCols%p.VectorWidth != 0 {
		return configErrorf("plan %s: MicroCols=%d is not divisible by VectorWidth=%d", p, p.MicroCols, p.VectorWidth)
	}
	if cells := p.MicroRows * p.MicroCols; cells > MaxAccumulatorCells {
		return configErrorf("plan %s: micro-tile %dx%d has %d cells, at most %d are supported",
			p, p.MicroRows, p.MicroCols, cells, MaxAccumulatorCells)
	}
	if tiles := p.VThreadRows * p.VThreadCols; tiles > MaxVThreadTiles {
		return configErrorf("plan %s: %dx%d virtual threads is %d tiles per thread, at most %d are supported",
			p, p.VThreadRows, p.VThreadCols, tiles, MaxVThreadTiles)
	}
	return nil
}

// Validate checks that the plan exactly tiles an output of m x n with a reduction of size k.
func (p TilingPlan) Validate(m, n, k int) error {
	if err := p.ValidateFactors(); err != nil {
		return err
	}
	if m <= 0 || n <= 0 || k <= 0 {
		return configErrorf("dimensions M=%d, N=%d, K=%d must be positive", m, n, k)
	}
	if m%p.BlockRows != 0 {
		return configErrorf("plan %s: M=%d is not divisible by BlockRows=%d", p, m, p.BlockRows)
	}
	if n%p.BlockCols != 0 {
		return configErrorf("plan %s: N=%d is not divisible by BlockCols=%d", p, n, p.BlockCols)
	}
	if k%p.ReductionOuter != 0 {
		return configErrorf("plan %s: K=%d is not divisible by ReductionOuter=%d", p, k, p.ReductionOuter)
	}
	return nil
}

// Grid is the number of blocks along each axis of the output.
type Grid struct {
	Rows, Cols int
}

// NumBlocks is the total number of blocks.
func (g Grid) NumBlocks() int { return g.Rows * g.Cols }

// Grid returns the blocks grid for an m x n output. It assumes the plan was validated for m and n.
func (p TilingPlan) Grid(m, n int) Grid {
	return Grid{Rows: m / p.BlockRows, Cols: n / p.BlockCols}
}
