// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package cascade_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/columnar/cascade"
)

// strongLinkColumn simulates a strong link column: breaking its
// backlink to a target decrements a shared referrer count, and once
// that count reaches zero the target row joins the closure.
type strongLinkColumn struct {
	targetTable, targetRow int
	referrers              *int
}

func (c *strongLinkColumn) CascadeBreakBacklinksTo(rowNdx int, state *cascade.State) error {
	*c.referrers--
	if *c.referrers == 0 {
		state.Add(c.targetTable, c.targetRow)
	}
	return nil
}

// weakLinkColumn never contributes rows to a cascade: weak links do
// not keep a row alive, but breaking one never removes anything either.
type weakLinkColumn struct{}

func (weakLinkColumn) CascadeBreakBacklinksTo(rowNdx int, state *cascade.State) error {
	return nil
}

// TestCascadeStrongLinkClosure is scenario S5: A --strong--> B, seed
// with A's row, expect the closure to include both rows once B's row
// becomes unreferenced.
func TestCascadeStrongLinkClosure(t *testing.T) {
	referrers := 1
	aCol := &strongLinkColumn{targetTable: 1, targetRow: 0, referrers: &referrers}

	tables := func(tableNdx int) []cascade.Column {
		if tableNdx == 0 {
			return []cascade.Column{{Ndx: 0, Column: aCol}}
		}
		return nil
	}

	state := cascade.NewState([]cascade.Row{{TableNdx: 0, RowNdx: 0}})
	require.NoError(t, cascade.New(tables).Run(state))

	require.Equal(t, []cascade.Row{{TableNdx: 0, RowNdx: 0}, {TableNdx: 1, RowNdx: 0}}, state.Rows())
}

// TestCascadeWeakLinkDoesNotPropagate extends S5: adding a third table
// C with a weak link to the same B row must not change the closure,
// and C's row must never be visited since nothing in the seed's
// reachable columns points at it.
func TestCascadeWeakLinkDoesNotPropagate(t *testing.T) {
	referrers := 1
	aCol := &strongLinkColumn{targetTable: 1, targetRow: 0, referrers: &referrers}
	cCol := weakLinkColumn{}
	cVisited := false

	tables := func(tableNdx int) []cascade.Column {
		switch tableNdx {
		case 0:
			return []cascade.Column{{Ndx: 0, Column: aCol}}
		case 2:
			cVisited = true
			return []cascade.Column{{Ndx: 0, Column: cCol}}
		default:
			return nil
		}
	}

	state := cascade.NewState([]cascade.Row{{TableNdx: 0, RowNdx: 0}})
	require.NoError(t, cascade.New(tables).Run(state))

	require.Equal(t, []cascade.Row{{TableNdx: 0, RowNdx: 0}, {TableNdx: 1, RowNdx: 0}}, state.Rows())
	require.False(t, cVisited, "table C is never reachable from the seed, so its columns must not be consulted")
}

func TestCascadeStopOnTable(t *testing.T) {
	referrers := 1
	aCol := &strongLinkColumn{targetTable: 1, targetRow: 0, referrers: &referrers}
	visited := false
	tables := func(tableNdx int) []cascade.Column {
		if tableNdx == 0 {
			visited = true
			return []cascade.Column{{Ndx: 0, Column: aCol}}
		}
		return nil
	}

	state := cascade.NewState([]cascade.Row{{TableNdx: 0, RowNdx: 0}}, cascade.StopOnTable(0))
	require.NoError(t, cascade.New(tables).Run(state))

	require.False(t, visited)
	require.Equal(t, []cascade.Row{{TableNdx: 0, RowNdx: 0}}, state.Rows())
}

func TestCascadeStopOnLinkListCell(t *testing.T) {
	referrers := 1
	aCol := &strongLinkColumn{targetTable: 1, targetRow: 0, referrers: &referrers}
	tables := func(tableNdx int) []cascade.Column {
		if tableNdx == 0 {
			return []cascade.Column{{Ndx: 3, Column: aCol}}
		}
		return nil
	}

	state := cascade.NewState([]cascade.Row{{TableNdx: 0, RowNdx: 0}}, cascade.StopOnLinkListCell(3, 0))
	require.NoError(t, cascade.New(tables).Run(state))

	require.Equal(t, []cascade.Row{{TableNdx: 0, RowNdx: 0}}, state.Rows())
	require.Equal(t, 1, referrers, "the suppressed cell must never be consulted")
}

// TestCascadeFollowsLowerSortingTableAddedMidRun guards against
// tracking newly-added rows by slicing state.rows[before:]: Add
// inserts in sorted (table,row) order, so a row added by table B's
// (ndx 1) callback for table A (ndx 0) sorts *before* B's own row
// already in the closure. If the engine only enqueued the tail of
// state.rows after each callback, A's row would never reach the
// worklist and A's own strong link into C would never be followed.
func TestCascadeFollowsLowerSortingTableAddedMidRun(t *testing.T) {
	aToC := 1
	bToA := 1
	aCol := &strongLinkColumn{targetTable: 2, targetRow: 0, referrers: &aToC}
	bCol := &strongLinkColumn{targetTable: 0, targetRow: 0, referrers: &bToA}

	tables := func(tableNdx int) []cascade.Column {
		switch tableNdx {
		case 0:
			return []cascade.Column{{Ndx: 0, Column: aCol}}
		case 1:
			return []cascade.Column{{Ndx: 0, Column: bCol}}
		default:
			return nil
		}
	}

	state := cascade.NewState([]cascade.Row{{TableNdx: 1, RowNdx: 0}})
	require.NoError(t, cascade.New(tables).Run(state))

	require.Equal(t, []cascade.Row{
		{TableNdx: 0, RowNdx: 0},
		{TableNdx: 1, RowNdx: 0},
		{TableNdx: 2, RowNdx: 0},
	}, state.Rows())
}

func TestStateAddDedupsAndSorts(t *testing.T) {
	s := cascade.NewState(nil)
	require.True(t, s.Add(1, 5))
	require.True(t, s.Add(0, 9))
	require.False(t, s.Add(1, 5))
	require.True(t, s.Add(1, 2))

	require.Equal(t, []cascade.Row{
		{TableNdx: 0, RowNdx: 9},
		{TableNdx: 1, RowNdx: 2},
		{TableNdx: 1, RowNdx: 5},
	}, s.Rows())
}
