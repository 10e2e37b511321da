// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package spec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/columnar/spec"
)

// TestSpecSubspecIndexingAcrossErase is scenario S6: build
// [Int, Table, Link->T2, Int, BackLink], check get_subspec_ndx before
// and after erasing the Table column, and that the surviving Link and
// BackLink tagged-int slots still resolve after the erase.
func TestSpecSubspecIndexingAcrossErase(t *testing.T) {
	s := spec.New()
	require.NoError(t, s.InsertColumn(0, spec.Int, "a", spec.AttrNone))
	require.NoError(t, s.InsertColumn(1, spec.Table, "t", spec.AttrNone))
	require.NoError(t, s.InsertColumn(2, spec.Link, "lnk", spec.AttrNone))
	require.NoError(t, s.SetOppositeLinkTableNdx(2, 7))
	require.NoError(t, s.InsertColumn(3, spec.Int, "b", spec.AttrNone))
	require.NoError(t, s.InsertColumn(4, spec.BackLink, "", spec.AttrNone))
	require.NoError(t, s.SetOppositeLinkTableNdx(4, 9))
	require.NoError(t, s.SetBacklinkOriginColumn(4, 2))

	got := make([]int, 5)
	for i := range got {
		got[i] = s.GetSubspecNdx(i)
	}
	require.Equal(t, []int{0, 0, 1, 2, 2}, got)

	linkSubspec, err := s.SubspecByNdx(s.GetSubspecNdx(2))
	require.Error(t, err) // Link's entry is a tagged int, not a nested Spec
	require.Nil(t, linkSubspec)

	require.NoError(t, s.EraseColumn(1))

	got = make([]int, 4)
	for i := range got {
		got[i] = s.GetSubspecNdx(i)
	}
	require.Equal(t, []int{0, 0, 1, 1}, got)

	tableNdx, err := s.GetOppositeLinkTableNdx(1)
	require.NoError(t, err)
	require.Equal(t, 7, tableNdx)

	originCol, err := s.GetOriginColumnNdx(3)
	require.NoError(t, err)
	require.Equal(t, 2, originCol)
}

func TestSpecNestedTableSpecReindexedAfterSiblingErase(t *testing.T) {
	s := spec.New()
	require.NoError(t, s.InsertColumn(0, spec.Table, "t1", spec.AttrNone))
	require.NoError(t, s.InsertColumn(1, spec.Int, "x", spec.AttrNone))
	require.NoError(t, s.InsertColumn(2, spec.Table, "t2", spec.AttrNone))

	nested, err := s.SubspecByNdx(s.GetSubspecNdx(2))
	require.NoError(t, err)
	require.Equal(t, s.GetSubspecNdx(2), nested.NdxInParent())

	require.NoError(t, s.EraseColumn(0))

	nested2, err := s.SubspecByNdx(s.GetSubspecNdx(1))
	require.NoError(t, err)
	require.Same(t, nested, nested2)
	require.Equal(t, s.GetSubspecNdx(1), nested.NdxInParent())
}

func TestSpecNameSkipsBacklink(t *testing.T) {
	s := spec.New()
	require.NoError(t, s.InsertColumn(0, spec.Int, "a", spec.AttrNone))
	require.NoError(t, s.InsertColumn(1, spec.BackLink, "", spec.AttrNone))

	name, err := s.Name(0)
	require.NoError(t, err)
	require.Equal(t, "a", name)

	_, err = s.Name(1)
	require.ErrorIs(t, err, spec.ErrNotBacklinkName)
}

func TestSpecHasStrongLinkColumns(t *testing.T) {
	s := spec.New()
	require.False(t, s.HasStrongLinkColumns())
	require.NoError(t, s.InsertColumn(0, spec.Link, "l", spec.AttrStrongLinks))
	require.True(t, s.HasStrongLinkColumns())
	require.NoError(t, s.EraseColumn(0))
	require.False(t, s.HasStrongLinkColumns())
}

func TestSpecEqual(t *testing.T) {
	build := func() *spec.Spec {
		s := spec.New()
		_ = s.InsertColumn(0, spec.Int, "a", spec.AttrNone)
		_ = s.InsertColumn(1, spec.Link, "l", spec.AttrNone)
		_ = s.SetOppositeLinkTableNdx(1, 3)
		return s
	}
	a, b := build(), build()
	require.True(t, a.Equal(b))

	require.NoError(t, b.SetOppositeLinkTableNdx(1, 4))
	require.False(t, a.Equal(b))
}
