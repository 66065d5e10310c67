// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package matrix defines Matrix, a dense row-major 2D array of float32 values with fixed extents.
//
// Matrices are the "global" scope operands and results of the GEMM kernels: they are owned
// by the caller, passed by reference, and never resized.
package matrix

import (
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Matrix is a dense rows x cols array of float32, stored row-major in Flat.
//
// Element (r, c) is at Flat[r*Cols+c].
type Matrix struct {
	Rows, Cols int
	Flat       []float32
}

// New returns a zero-initialized Matrix with the given extents.
//
// It panics if any of the extents is <= 0.
func New(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		exceptions.Panicf("matrix.New(%d, %d): cannot create a matrix with an extent <= 0", rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Flat: make([]float32, rows*cols)}
}

// FromFlat wraps flat as a rows x cols Matrix, without copying it.
func FromFlat(rows, cols int, flat []float32) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("matrix.FromFlat(%d, %d): extents must be positive", rows, cols)
	}
	if len(flat) != rows*cols {
		return nil, errors.Errorf("matrix.FromFlat(%d, %d): flat has %d elements, wanted %d",
			rows, cols, len(flat), rows*cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Flat: flat}, nil
}

// FromRows creates a Matrix copying the values of rows, which must all have the same length.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("matrix.FromRows: empty matrix")
	}
	m := New(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != m.Cols {
			return nil, errors.Errorf("matrix.FromRows: row %d has %d columns, row 0 has %d", r, len(row), m.Cols)
		}
		copy(m.Row(r), row)
	}
	return m, nil
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Matrix {
	m := New(n, n)
	for ii := range n {
		m.Flat[ii*n+ii] = 1
	}
	return m
}

// Random returns a rows x cols Matrix with values uniformly drawn from [-1, 1).
func Random(rows, cols int, rng *rand.Rand) *Matrix {
	m := New(rows, cols)
	for ii := range m.Flat {
		m.Flat[ii] = 2*rng.Float32() - 1
	}
	return m
}

// Size is the number of elements.
func (m *Matrix) Size() int { return m.Rows * m.Cols }

// Memory is the number of bytes used by the elements.
func (m *Matrix) Memory() uintptr { return uintptr(m.Size()) * unsafe.Sizeof(float32(0)) }

// At returns element (r, c).
func (m *Matrix) At(r, c int) float32 { return m.Flat[r*m.Cols+c] }

// Set element (r, c) to v.
func (m *Matrix) Set(r, c int, v float32) { m.Flat[r*m.Cols+c] = v }

// Row returns the slice of Flat holding row r. Changes to it change the Matrix.
func (m *Matrix) Row(r int) []float32 {
	return m.Flat[r*m.Cols : (r+1)*m.Cols]
}

// Transpose returns a new cols x rows Matrix with the transposed values of m.
func (m *Matrix) Transpose() *Matrix {
	t := New(m.Cols, m.Rows)
	for r := range m.Rows {
		row := m.Row(r)
		for c, v := range row {
			t.Flat[c*m.Rows+r] = v
		}
	}
	return t
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	c := New(m.Rows, m.Cols)
	copy(c.Flat, m.Flat)
	return c
}

// Equal returns whether m and other have the same extents and values.
// Following IEEE-754, a NaN is never equal to anything.
func (m *Matrix) Equal(other *Matrix) bool {
	if m.Rows != other.Rows || m.Cols != other.Cols {
		return false
	}
	for ii, v := range m.Flat {
		if v != other.Flat[ii] {
			return false
		}
	}
	return true
}

// Overlaps returns whether m and other share any of their underlying memory.
func (m *Matrix) Overlaps(other *Matrix) bool {
	if len(m.Flat) == 0 || len(other.Flat) == 0 {
		return false
	}
	elemSize := unsafe.Sizeof(float32(0))
	start0 := uintptr(unsafe.Pointer(unsafe.SliceData(m.Flat)))
	end0 := start0 + uintptr(len(m.Flat))*elemSize
	start1 := uintptr(unsafe.Pointer(unsafe.SliceData(other.Flat)))
	end1 := start1 + uintptr(len(other.Flat))*elemSize
	return start0 < end1 && start1 < end0
}

// ToRows returns a copy of the values as a slice of rows.
func (m *Matrix) ToRows() [][]float32 {
	rows := make([][]float32, m.Rows)
	for r := range rows {
		rows[r] = append([]float32(nil), m.Row(r)...)
	}
	return rows
}

// String implements fmt.Stringer. It only prints the extents.
func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix[%dx%d]", m.Rows, m.Cols)
}
