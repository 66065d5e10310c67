// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New(2, 3)
	assert.Equal(t, 6, m.Size())
	assert.Equal(t, uintptr(24), m.Memory())
	assert.Equal(t, "Matrix[2x3]", m.String())
	for _, v := range m.Flat {
		assert.Zero(t, v)
	}
	assert.Panics(t, func() { New(0, 3) })
	assert.Panics(t, func() { New(3, -1) })
}

func TestFromFlat(t *testing.T) {
	flat := []float32{1, 2, 3, 4, 5, 6}
	m, err := FromFlat(2, 3, flat)
	require.NoError(t, err)
	assert.Equal(t, float32(6), m.At(1, 2))
	assert.Equal(t, []float32{4, 5, 6}, m.Row(1))
	m.Set(0, 1, -2)
	assert.Equal(t, float32(-2), flat[1], "FromFlat should not copy")

	_, err = FromFlat(4, 2, flat[:5])
	require.Error(t, err)
	_, err = FromFlat(0, 2, nil)
	require.Error(t, err)
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, 2, m.Cols)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, m.ToRows())

	_, err = FromRows([][]float32{{1, 2}, {3}})
	require.Error(t, err)
	_, err = FromRows(nil)
	require.Error(t, err)
}

func TestIdentityAndTranspose(t *testing.T) {
	id := Identity(3)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, id.ToRows())
	assert.True(t, id.Equal(id.Transpose()))

	m, err := FromRows([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	mt := m.Transpose()
	assert.Equal(t, [][]float32{{1, 4}, {2, 5}, {3, 6}}, mt.ToRows())
	assert.True(t, m.Equal(mt.Transpose()))
	assert.False(t, m.Equal(mt))
}

func TestCloneEqualOverlaps(t *testing.T) {
	m := Random(4, 5, rand.New(rand.NewPCG(1, 2)))
	c := m.Clone()
	assert.True(t, m.Equal(c))
	assert.False(t, m.Overlaps(c))
	for _, v := range m.Flat {
		assert.True(t, v >= -1 && v < 1)
	}

	c.Flat[3] = float32(math.NaN())
	assert.False(t, m.Equal(c))
	assert.False(t, c.Equal(c), "NaN is never equal")

	view, err := FromFlat(2, 5, m.Flat[10:])
	require.NoError(t, err)
	assert.True(t, m.Overlaps(view))
	assert.True(t, view.Overlaps(m))
	before, err := FromFlat(2, 5, m.Flat[:10])
	require.NoError(t, err)
	assert.False(t, before.Overlaps(view))
}
