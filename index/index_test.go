// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package index_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/columnar/index"
)

func TestIndexFindAllAndCount(t *testing.T) {
	idx := index.New(index.Int64Codec())
	require.NoError(t, idx.Insert(0, 10))
	require.NoError(t, idx.Insert(1, 20))
	require.NoError(t, idx.Insert(2, 10))

	rows, err := idx.FindAll(int64(10))
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, rows)

	n, err := idx.Count(int64(10))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	row, found, err := idx.FindFirst(int64(20))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, row)
}

func TestIndexSetMovesBucket(t *testing.T) {
	idx := index.New(index.StringCodec())
	require.NoError(t, idx.Insert(0, "a"))
	require.NoError(t, idx.Set(0, "b"))

	rows, err := idx.FindAll("a")
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = idx.FindAll("b")
	require.NoError(t, err)
	require.Equal(t, []int{0}, rows)
}

func TestIndexEraseShiftsSuffix(t *testing.T) {
	idx := index.New(index.Int64Codec())
	for i, v := range []int64{1, 2, 3} {
		require.NoError(t, idx.Insert(i, v))
	}

	require.NoError(t, idx.Erase(0, false))

	row, found, err := idx.FindFirst(int64(2))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0, row)

	row, found, err = idx.FindFirst(int64(3))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, row)
}

func TestIndexUpdateRefRenamesRow(t *testing.T) {
	idx := index.New(index.Int64Codec())
	for i, v := range []int64{1, 2, 3} {
		require.NoError(t, idx.Insert(i, v))
	}

	// mimic move_last_over(0): erase row 0 without suffix shifting, then
	// re-point the moved last value's (3) entry from row 2 to row 0.
	require.NoError(t, idx.Erase(0, true))
	require.NoError(t, idx.UpdateRef(int64(3), 2, 0))

	row, found, err := idx.FindFirst(int64(3))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0, row)

	n, err := idx.Count(int64(3))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIndexClear(t *testing.T) {
	idx := index.New(index.BoolCodec())
	require.NoError(t, idx.Insert(0, true))
	require.NoError(t, idx.Clear())

	n, err := idx.Count(true)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
