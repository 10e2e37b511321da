// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package subtable implements the per-column sub-table accessor map
// (spec.md §3, §4.6, component H): a cache of live sub-table handles,
// reference-counted against the owning column's parent table, with
// the invalidation protocol that keeps it consistent across
// structural mutations and transaction refreshes.
//
// Grounded on
// _examples/original_source/src/realm/column_table.cpp's
// SubtableColumnBase::SubtableMap. That map is guarded by a recursive
// mutex because refresh_accessor_tree may re-enter the same map
// through a nested sub-table's own refresh; Go's sync.Mutex is not
// reentrant, so this port keeps the lock (the ambient stack's
// sync.Mutex convention, spec.md §2) but narrows its scope to just the
// entries slice itself, releasing it before calling any Accessor
// method that could recurse back in — the idiomatic Go substitute for
// a recursive lock.
package subtable

import "sync"

// Accessor is the minimal interface a live sub-table handle must
// satisfy for the map to manage it; spec.md's §6 Table collaborator
// interface, restricted to what this package calls directly.
type Accessor interface {
	// SetNdxInParent updates the accessor's cached row within its
	// parent column.
	SetNdxInParent(row int)
	// Detach marks the accessor permanently unusable.
	Detach()
	// IsMarked reports whether a structural refresh should recurse
	// into this accessor's own accessor tree, or just its Spec.
	IsMarked() bool
	// RefreshAccessorTree re-synchronizes the accessor's own nested
	// structure after a transaction boundary.
	RefreshAccessorTree()
	// BumpVersion increments the accessor's change-tracking version.
	BumpVersion()
	// RefreshSpecAccessor re-synchronizes only the accessor's cached
	// Spec, without a full structural refresh.
	RefreshSpecAccessor()
	// RecursiveMark propagates a structural-refresh mark down into the
	// accessor's own nested accessor tree.
	RecursiveMark()
}

type entry struct {
	row   int
	table Accessor
}

// Map is a SubtableColumn's cache of live Accessor handles, keyed by
// row. The zero value is an empty, ready-to-use map.
type Map struct {
	mu      sync.Mutex
	entries []entry
}

// Find returns the accessor cached for row, if any.
func (m *Map) Find(row int) (Accessor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.row == row {
			return e.table, true
		}
	}
	return nil, false
}

// Empty reports whether the map currently holds no live accessors.
func (m *Map) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries) == 0
}

// Add registers table as the live accessor for row. If the map was
// empty before this call, bind is invoked after the insertion — the
// column's extra reference on its parent table (spec.md §4.6's
// reference-counting coupling). bind may be nil.
func (m *Map) Add(row int, table Accessor, bind func()) {
	m.mu.Lock()
	wasEmpty := len(m.entries) == 0
	m.entries = append(m.entries, entry{row, table})
	m.mu.Unlock()
	if wasEmpty && bind != nil {
		bind()
	}
}

// Remove drops table from the map, wherever its row currently is.
// Reports whether table was found. If removing it empties the map,
// unbind is called as the very last step — it may destroy the map's
// owner (spec.md §4.6's documented "self-suicide" path), so no field
// of m is touched afterward. unbind may be nil. A caller whose
// accessor failed construction before being registered is expected to
// tolerate a false result, not treat it as an error (spec.md §4.6's
// "construction race").
func (m *Map) Remove(table Accessor, unbind func()) bool {
	m.mu.Lock()
	idx := -1
	for i, e := range m.entries {
		if e.table == table {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	last := len(m.entries) - 1
	m.entries[idx] = m.entries[last]
	m.entries = m.entries[:last]
	becameEmpty := len(m.entries) == 0
	m.mu.Unlock()
	if becameEmpty && unbind != nil {
		unbind()
	}
	return true
}

// DetachAndRemove detaches and removes the accessor cached for row, if
// any. Reports whether an accessor was found. unbind runs last, as in
// Remove.
func (m *Map) DetachAndRemove(row int, unbind func()) bool {
	m.mu.Lock()
	idx := -1
	for i, e := range m.entries {
		if e.row == row {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	table := m.entries[idx].table
	last := len(m.entries) - 1
	m.entries[idx] = m.entries[last]
	m.entries = m.entries[:last]
	becameEmpty := len(m.entries) == 0
	m.mu.Unlock()

	table.Detach()
	if becameEmpty && unbind != nil {
		unbind()
	}
	return true
}

// DetachAndRemoveAll detaches every cached accessor and empties the
// map. Reports whether the map held anything. unbind runs last, as in
// Remove.
func (m *Map) DetachAndRemoveAll(unbind func()) bool {
	m.mu.Lock()
	tables := make([]Accessor, len(m.entries))
	for i, e := range m.entries {
		tables[i] = e.table
	}
	wasEmpty := len(m.entries) == 0
	m.entries = nil
	m.mu.Unlock()

	for _, table := range tables {
		table.Detach()
	}
	if !wasEmpty && unbind != nil {
		unbind()
	}
	return !wasEmpty
}

// UpdateFromParent refreshes every cached accessor against a new
// arena baseline (spec.md §4.4's arena-baseline refresh, extended to
// every live sub-table handle).
func (m *Map) UpdateFromParent(refresh func(Accessor)) {
	for _, table := range m.snapshot() {
		refresh(table)
	}
}

// RecursiveMark propagates a structural-refresh mark down into every
// cached accessor's own nested tree.
func (m *Map) RecursiveMark() {
	for _, table := range m.snapshot() {
		table.RecursiveMark()
	}
}

func (m *Map) snapshot() []Accessor {
	m.mu.Lock()
	defer m.mu.Unlock()
	tables := make([]Accessor, len(m.entries))
	for i, e := range m.entries {
		tables[i] = e.table
	}
	return tables
}

// RefreshAccessorTree re-synchronizes every live accessor after a
// transaction boundary (spec.md §4.6's refresh protocol): set each
// one's ndx-in-parent to its cached row, then either a full structural
// refresh (if marked) or just its Spec accessor. Iterated over a
// snapshot taken up front, so an accessor that self-removes mid-refresh
// (spec.md's documented hazard) cannot corrupt this loop the way
// walking the live, shrinking slice would.
func (m *Map) RefreshAccessorTree() {
	m.mu.Lock()
	snap := make([]entry, len(m.entries))
	copy(snap, m.entries)
	m.mu.Unlock()

	for i := len(snap) - 1; i >= 0; i-- {
		e := snap[i]
		e.table.SetNdxInParent(e.row)
		if e.table.IsMarked() {
			e.table.RefreshAccessorTree()
			e.table.BumpVersion()
		} else {
			e.table.RefreshSpecAccessor()
		}
	}
}

// UpdateAccessors walks every cached accessor with updater, passing
// the path of column indices from the root that identifies the
// structural change being propagated.
func (m *Map) UpdateAccessors(colPath []int, updater func(Accessor, []int)) {
	for _, table := range m.snapshot() {
		updater(table, colPath)
	}
}

// AdjRowInsert shifts every cached row index >= at up by n, following
// a positional insert into the owning column (spec.md §4.6's adj_*
// family).
func (m *Map) AdjRowInsert(at, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].row >= at {
			m.entries[i].row += n
		}
	}
}

// AdjRowErase shifts every cached row index > at down by one,
// following a positional erase from the owning column.
func (m *Map) AdjRowErase(at int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].row > at {
			m.entries[i].row--
		}
	}
}

// AdjRowMoveLastOver re-points an accessor cached at last to dst,
// following the column family's move_last_over primitive (spec.md
// §4.2, §8 scenario S3): the accessor at dst (if any) was already
// destroyed by the caller before the tree mutation, so this only
// relocates the surviving last-row accessor.
func (m *Map) AdjRowMoveLastOver(dst, last int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].row == last {
			m.entries[i].row = dst
		}
	}
}

// AdjRowClear detaches and drops every cached accessor, used by the
// owning column's clear().
func (m *Map) AdjRowClear(unbind func()) bool {
	return m.DetachAndRemoveAll(unbind)
}
