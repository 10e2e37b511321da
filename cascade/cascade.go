// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package cascade implements the cascading-delete closure engine
// (spec.md §4.7, component I): given a set of (table, row) seeds,
// compute the transitive closure of rows that must also be removed
// because a *strong* link into them is being broken. Weak links never
// contribute to the closure.
//
// Grounded on spec.md §4.7's description of Core's cascade state
// together with the backlink-breaking contract in
// _examples/original_source/src/realm/column_table.cpp (the same
// parent/child notification pattern driving column_backlink.cpp's
// cascade_break_backlinks_to, which this module does not carry a
// concrete Link/LinkList column type for — see DESIGN.md). Only
// link-bearing columns ever contribute rows to a cascade; an ordinary
// data column is inert and is never consulted.
package cascade

import "sort"

// Row identifies a single row by its table and row index.
type Row struct {
	TableNdx int
	RowNdx   int
}

func less(a, b Row) bool {
	if a.TableNdx != b.TableNdx {
		return a.TableNdx < b.TableNdx
	}
	return a.RowNdx < b.RowNdx
}

// State is the cascade's accumulating closure: a sorted, de-duplicated
// set of rows, plus the two mutually-exclusive recursion suppressors
// spec.md §4.7 names.
type State struct {
	rows []Row

	// added logs rows newly inserted by Add since the last drain, in
	// call order. The engine drains this after every column callback
	// instead of diffing rows by length, since Add inserts in sorted
	// (table,row) order and a newly-added row can land anywhere in
	// rows, not just at the tail.
	added []Row

	stopOnTable bool
	stopTable   int

	stopOnLinkListCell bool
	stopColumnNdx      int
	stopRowNdx         int
}

// Option configures a State at construction.
type Option func(*State)

// StopOnTable suppresses recursion into tableNdx entirely. Used by a
// bulk table clear to avoid cascading back into the table already
// being cleared. Mutually exclusive with StopOnLinkListCell.
func StopOnTable(tableNdx int) Option {
	return func(s *State) {
		s.stopOnTable = true
		s.stopTable = tableNdx
	}
}

// StopOnLinkListCell suppresses recursion into one specific link-list
// cell (columnNdx, rowNdx). Used by a link-list clear to avoid
// cascading back into the cell already being cleared. Mutually
// exclusive with StopOnTable.
func StopOnLinkListCell(columnNdx, rowNdx int) Option {
	return func(s *State) {
		s.stopOnLinkListCell = true
		s.stopColumnNdx = columnNdx
		s.stopRowNdx = rowNdx
	}
}

// NewState builds a cascade State from the given seeds and options.
func NewState(seeds []Row, opts ...Option) *State {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range seeds {
		s.Add(r.TableNdx, r.RowNdx)
	}
	return s
}

// Add inserts (tableNdx, rowNdx) into the closure if not already
// present, keeping rows sorted by (table_ndx, row_ndx). Reports
// whether the row was newly added.
func (s *State) Add(tableNdx, rowNdx int) bool {
	r := Row{tableNdx, rowNdx}
	i := sort.Search(len(s.rows), func(i int) bool { return !less(s.rows[i], r) })
	if i < len(s.rows) && s.rows[i] == r {
		return false
	}
	s.rows = append(s.rows, Row{})
	copy(s.rows[i+1:], s.rows[i:])
	s.rows[i] = r
	s.added = append(s.added, r)
	return true
}

// drainAdded returns and clears the log of rows added since the last
// drain.
func (s *State) drainAdded() []Row {
	added := s.added
	s.added = nil
	return added
}

// Rows returns the closure accumulated so far, in sorted order.
func (s *State) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// ShouldStopTable reports whether recursion into tableNdx is
// suppressed by a StopOnTable option.
func (s *State) ShouldStopTable(tableNdx int) bool {
	return s.stopOnTable && s.stopTable == tableNdx
}

// ShouldStopLinkListCell reports whether recursion into the
// (columnNdx, rowNdx) link-list cell is suppressed by a
// StopOnLinkListCell option.
func (s *State) ShouldStopLinkListCell(columnNdx, rowNdx int) bool {
	return s.stopOnLinkListCell && s.stopColumnNdx == columnNdx && s.stopRowNdx == rowNdx
}

// LinkColumn is a column capable of contributing rows to a cascade:
// told that rowNdx in its own table is being removed from the
// closure, it must find whatever row(s) its cell at rowNdx links to,
// drop the backlink there, and — if a target thereby becomes
// unreferenced by any other strong link — add it to state so the
// engine recurses into it. Ordinary (non-link) columns never
// implement this interface and are skipped by the engine.
type LinkColumn interface {
	CascadeBreakBacklinksTo(rowNdx int, state *State) error
}

// Column pairs a LinkColumn with its index within its table, so the
// engine can check per-cell suppression (StopOnLinkListCell) without
// requiring column identity comparisons.
type Column struct {
	Ndx    int
	Column LinkColumn
}

// Tables resolves the link-bearing columns of a table, by table index.
// Ordinary data columns are simply omitted from the returned slice.
type Tables func(tableNdx int) []Column

// Engine drives State to a fixed point: every row in the closure has
// had every one of its table's link columns consulted, and every row
// any of them newly added has been consulted in turn.
type Engine struct {
	tables Tables
}

// New builds an Engine that resolves link columns via tables.
func New(tables Tables) *Engine {
	return &Engine{tables: tables}
}

// Run drives state to closure, consulting each seed row's link columns
// and recursing into every row they newly add.
func (e *Engine) Run(state *State) error {
	worklist := state.Rows()
	state.drainAdded() // discard the seeding log; worklist already has the seeds

	for len(worklist) > 0 {
		row := worklist[0]
		worklist = worklist[1:]

		if state.ShouldStopTable(row.TableNdx) {
			continue
		}
		for _, col := range e.tables(row.TableNdx) {
			if state.ShouldStopLinkListCell(col.Ndx, row.RowNdx) {
				continue
			}
			if err := col.Column.CascadeBreakBacklinksTo(row.RowNdx, state); err != nil {
				return err
			}
			worklist = append(worklist, state.drainAdded()...)
		}
	}
	return nil
}
