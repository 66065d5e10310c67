// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

// AxisCoord locates one output row (or column) in the hierarchy of execution units.
type AxisCoord struct {
	Block, VThread, Thread, Micro int
}

// TileCoord locates one output element in the hierarchy of execution units.
type TileCoord struct {
	Row, Col AxisCoord
}

// axisFactors are the tiling factors of one output axis.
type axisFactors struct {
	block, vthreads, threads, micro int
}

func (p TilingPlan) rowAxis() axisFactors {
	return axisFactors{block: p.BlockRows, vthreads: p.VThreadRows, threads: p.ThreadRows, micro: p.MicroRows}
}

func (p TilingPlan) colAxis() axisFactors {
	return axisFactors{block: p.BlockCols, vthreads: p.VThreadCols, threads: p.ThreadCols, micro: p.MicroCols}
}

// vtile is the extent covered by one virtual thread: all the threads' micro-tiles side by side.
func (a axisFactors) vtile() int { return a.threads * a.micro }

// locals is the extent a thread owns in a block: one micro-tile per virtual thread.
func (a axisFactors) locals() int { return a.vthreads * a.micro }

func (a axisFactors) locate(idx int) (c AxisCoord) {
	c.Block, idx = idx/a.block, idx%a.block
	c.VThread, idx = idx/a.vtile(), idx%a.vtile()
	c.Thread, c.Micro = idx/a.micro, idx%a.micro
	return
}

func (a axisFactors) index(c AxisCoord) int {
	return c.Block*a.block + c.VThread*a.vtile() + c.Thread*a.micro + c.Micro
}

// Locate maps output element (i, j) to the execution units that compute it.
//
// For a validated plan, Locate is a bijection between the output elements and the valid
// TileCoord values, and Index is its inverse.
func (p TilingPlan) Locate(i, j int) TileCoord {
	return TileCoord{Row: p.rowAxis().locate(i), Col: p.colAxis().locate(j)}
}

// Index maps a TileCoord back to its output element (i, j).
func (p TilingPlan) Index(tc TileCoord) (i, j int) {
	return p.rowAxis().index(tc.Row), p.colAxis().index(tc.Col)
}

// ForEachElement enumerates the decomposition of an m x n output: for every block, virtual thread,
// thread and micro-tile cell (in this nesting order) it calls fn with the coordinate and the output
// element it maps to.
//
// It assumes the plan was validated for m and n.
func (p TilingPlan) ForEachElement(m, n int, fn func(tc TileCoord, i, j int)) {
	grid := p.Grid(m, n)
	for blockRow := range grid.Rows {
		for blockCol := range grid.Cols {
			for vthreadRow := range p.VThreadRows {
				for vthreadCol := range p.VThreadCols {
					for threadRow := range p.ThreadRows {
						for threadCol := range p.ThreadCols {
							for microRow := range p.MicroRows {
								for microCol := range p.MicroCols {
									tc := TileCoord{
										Row: AxisCoord{blockRow, vthreadRow, threadRow, microRow},
										Col: AxisCoord{blockCol, vthreadCol, threadCol, microCol},
									}
									i, j := p.Index(tc)
									fn(tc, i, j)
								}
							}
						}
					}
				}
			}
		}
	}
}
