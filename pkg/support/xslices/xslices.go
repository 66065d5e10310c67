// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package, for the numeric
// slices used by the GEMM kernels and their tests.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Number is any integer or float type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Iota returns a slice of incremental values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T Number](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// SliceWithValue creates a slice of given size filled with given value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	FillSlice(s, value)
	return s
}

// FillSlice with fill the slice with the given value.
func FillSlice[T any](slice []T, value T) {
	// Apparently, the fastest way is by using copy.
	if len(slice) == 0 {
		return
	}
	slice[0] = value
	filled := 1
	for ; filled < len(slice); filled *= 2 {
		copy(slice[filled:], slice[:filled])
	}
}

// Abs returns the absolute value of v.
func Abs[T Number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// MaxAbs returns the largest absolute value in slice, or 0 if it is empty.
func MaxAbs[T Number](slice []T) (max T) {
	for _, v := range slice {
		if a := Abs(v); a > max {
			max = a
		}
	}
	return
}

// MaxAbsDiff returns the largest absolute element-wise difference between s0 and s1,
// and the index where it happens. A NaN difference is returned immediately.
//
// It panics if the slices have different lengths.
func MaxAbsDiff[T constraints.Float](s0, s1 []T) (maxDiff T, idx int) {
	if len(s0) != len(s1) {
		panic("xslices.MaxAbsDiff: slices of different lengths")
	}
	idx = -1
	for ii := range s0 {
		diff := Abs(s0[ii] - s1[ii])
		if diff != diff {
			return diff, ii
		}
		if idx == -1 || diff > maxDiff {
			maxDiff, idx = diff, ii
		}
	}
	return
}
