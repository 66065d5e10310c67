// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan()
	require.NoError(t, plan.ValidateFactors())
	assert.Equal(t, 256, plan.ThreadsPerBlock())
	assert.NoError(t, plan.Validate(128, 128, 1024))
	assert.NoError(t, plan.Validate(256, 384, 2048))
	assert.Equal(t, Grid{Rows: 2, Cols: 3}, plan.Grid(256, 384))
	assert.Equal(t, 6, plan.Grid(256, 384).NumBlocks())
	assert.Equal(t, "block=128x128,vthread=2x2,thread=16x16,micro=4x4,kouter=1024,kinner=16,vector=4", plan.String())
}

func TestSquarePlan(t *testing.T) {
	assert.Equal(t, DefaultPlan(), SquarePlan(2, 16, 4, 1024, 16))
	plan := SquarePlan(1, 2, 2, 4, 2)
	assert.Equal(t, 4, plan.BlockRows)
	assert.Equal(t, 2, plan.VectorWidth)
	plan = SquarePlan(1, 1, 3, 4, 2)
	assert.Equal(t, 1, plan.VectorWidth)
	assert.NoError(t, plan.ValidateFactors())
}

func TestValidate(t *testing.T) {
	withChange := func(fn func(p *TilingPlan)) TilingPlan {
		p := DefaultPlan()
		fn(&p)
		return p
	}
	testCases := []struct {
		name    string
		plan    TilingPlan
		m, n, k int
	}{
		{"non-positive-factor", withChange(func(p *TilingPlan) { p.ReductionInner = 0 }), 128, 128, 1024},
		{"block-rows-mismatch", withChange(func(p *TilingPlan) { p.BlockRows = 64 }), 128, 128, 1024},
		{"block-cols-mismatch", withChange(func(p *TilingPlan) { p.ThreadCols = 8 }), 128, 128, 1024},
		{"inner-not-dividing-outer", withChange(func(p *TilingPlan) { p.ReductionInner = 24 }), 128, 128, 1024},
		{"vector-not-dividing-micro", withChange(func(p *TilingPlan) { p.VectorWidth = 3 }), 128, 128, 1024},
		{"accumulator-too-large", SquarePlan(1, 1, 16, 16, 16), 16, 16, 16},
		{"too-many-vthreads", SquarePlan(5, 1, 1, 16, 16), 5, 5, 16},
		{"m-not-divisible", DefaultPlan(), 100, 128, 1024},
		{"n-not-divisible", DefaultPlan(), 128, 200, 1024},
		{"k-not-divisible", DefaultPlan(), 128, 128, 1000},
		{"k-smaller-than-outer", DefaultPlan(), 128, 128, 512},
		{"zero-dimension", DefaultPlan(), 0, 128, 1024},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate(tc.m, tc.n, tc.k)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "error %v should wrap ErrConfiguration", err)
		})
	}
}

func TestParsePlan(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		plan, err := ParsePlan("  ")
		require.NoError(t, err)
		assert.Equal(t, DefaultPlan(), plan)
	})

	t.Run("square", func(t *testing.T) {
		plan, err := ParsePlan("block=64,vthread=2,thread=8,micro=4,kouter=256,kinner=16")
		require.NoError(t, err)
		assert.Equal(t, SquarePlan(2, 8, 4, 256, 16), plan)

		plan, err = ParsePlan("block=8,vthread=2,thread=2,micro=2")
		require.NoError(t, err)
		assert.Equal(t, 2, plan.VectorWidth)
	})

	t.Run("round-trip", func(t *testing.T) {
		for _, config := range []string{
			DefaultPlan().String(),
			"block=64x32,vthread=2x1,thread=8x8,micro=4x4,kouter=64,kinner=8,vector=2",
			"block=6x8,vthread=1x2,thread=2x2,micro=3x2,kouter=4,kinner=2,vector=1",
		} {
			plan, err := ParsePlan(config)
			require.NoError(t, err, "config %q", config)
			assert.Equal(t, config, plan.String())
			assert.Equal(t, plan, MustParsePlan(plan.String()))
		}
	})

	t.Run("errors", func(t *testing.T) {
		for _, config := range []string{
			"block",
			"foo=3",
			"kouter=-1",
			"kinner=x",
			"micro=axb",
			"thread=8x",
			"block=64", // Inconsistent with the default factors.
		} {
			_, err := ParsePlan(config)
			require.Error(t, err, "config %q", config)
			assert.True(t, errors.Is(err, ErrConfiguration), "config %q: error %v should wrap ErrConfiguration", config, err)
		}
		err := exceptions.TryCatch[error](func() { MustParsePlan("foo=3") })
		require.Error(t, err)
	})
}

func TestSplitConfig(t *testing.T) {
	testCases := []struct {
		config, kernel, plan string
	}{
		{"", "", ""},
		{"tiled", "tiled", ""},
		{"block=64,thread=8", "", "block=64,thread=8"},
		{"whole:kouter=512", "whole", "kouter=512"},
		{" reference : ", "reference", ""},
		{":micro=2", "", "micro=2"},
	}
	for _, tc := range testCases {
		kernel, plan := splitConfig(tc.config)
		assert.Equal(t, tc.kernel, kernel, "kernel of config %q", tc.config)
		assert.Equal(t, tc.plan, plan, "plan of config %q", tc.config)
	}
}
