// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package spec implements the column-level schema (spec.md §3, §4.5,
// component G): parallel types/names/attrs arrays plus a sparse
// subspecs array for Table/Link/LinkList/BackLink columns, and the
// indexing rules every insert_column/erase_column must preserve.
//
// Unlike the teacher's arena-resident structures, a Spec here is a
// plain in-memory value: spec.md §1 scopes persistence out, and a
// schema descriptor has no need of the arena's copy-on-write baseline
// discipline the column/bptree packages implement against — it is
// rebuilt fresh by its owning table, not shared across transactions.
package spec

import (
	"errors"
	"fmt"

	"github.com/dacapoday/columnar"
)

// ColumnType enumerates the column kinds spec.md §4.4 names.
type ColumnType int

const (
	Int ColumnType = iota
	Bool
	Float
	String
	Binary
	Table
	Link
	LinkList
	BackLink
)

// ColumnAttr is a bitmask of per-column schema attributes.
type ColumnAttr int

const (
	AttrNone        ColumnAttr = 0
	AttrIndexed     ColumnAttr = 1 << 0
	AttrStrongLinks ColumnAttr = 1 << 1
	AttrNullable    ColumnAttr = 1 << 2
)

var (
	// ErrOutOfRange mirrors columnar.ErrOutOfRange for column-index
	// arguments (spec.md §7 OutOfBounds).
	ErrOutOfRange = columnar.ErrOutOfRange

	// ErrInvariantViolation mirrors columnar.ErrInvariantViolation,
	// raised when a subspec tagged-int slot is read before being set or
	// fails the low-bit check (spec.md §7).
	ErrInvariantViolation = columnar.ErrInvariantViolation

	// ErrNotBacklinkName is returned by Name for a backlink column,
	// which has no public name (spec.md §3's names-array indexing rule).
	ErrNotBacklinkName = errors.New("spec: backlink columns have no name")

	// ErrNotSubspecType is returned when a subspec-only accessor
	// (OppositeLinkTableNdx, OriginColumnNdx, SubspecByNdx) is called on
	// a column whose type carries no subspec entry.
	ErrNotSubspecType = errors.New("spec: column has no subspec entry")
)

func entriesPerType(t ColumnType) int {
	switch t {
	case Table, Link, LinkList:
		return 1
	case BackLink:
		return 2
	default:
		return 0
	}
}

func isSubspecType(t ColumnType) bool {
	return entriesPerType(t) > 0
}

// subspecEntry is one slot of the sparse subspecs array: either a
// tagged foreign table/column index (Link/LinkList/BackLink) or a
// nested Spec (Table). Grounded on core.go's Ref/Tag/Untag vocabulary,
// the same tagged-integer convention spec.md §4.5 describes.
type subspecEntry struct {
	isRef  bool
	tagged columnar.Ref
	nested *Spec
}

// Spec is a column-level schema descriptor (spec.md §3, §4.5).
type Spec struct {
	types    []ColumnType
	names    []string
	attrs    []ColumnAttr
	subspecs []subspecEntry
	enumKeys []columnar.Ref // §3 data-model slot; unreachable, see New's doc note

	// ndxInParent is this Spec's own position within its parent
	// Spec's subspecs array, valid only for a Spec obtained via
	// SubspecByNdx. adjSubspecPtrs keeps it correct across mutation
	// (spec.md §4.5 "Nested Spec ownership").
	ndxInParent int

	hasStrongLinkColumns bool
}

// New returns an empty Spec with no columns.
//
// enumKeys (StringEnum's key-list side table) is kept only as the data
// model's slot — StringEnum is not among the column types this module
// supports (spec.md §4.4 enumerates Int/Bool/Float/String/Binary/
// Table/Link/BackLink only) — so GetEnumKeysNdx always answers from an
// array that never grows past zero length.
func New() *Spec {
	return &Spec{}
}

// ColumnCount returns the number of columns, including backlinks.
func (s *Spec) ColumnCount() int { return len(s.types) }

// Type returns column i's type.
func (s *Spec) Type(i int) (ColumnType, error) {
	if i < 0 || i >= len(s.types) {
		return 0, fmt.Errorf("spec.Type(%d): %w", i, ErrOutOfRange)
	}
	return s.types[i], nil
}

// Name returns column i's public name; backlink columns have none.
func (s *Spec) Name(i int) (string, error) {
	if i < 0 || i >= len(s.types) {
		return "", fmt.Errorf("spec.Name(%d): %w", i, ErrOutOfRange)
	}
	if s.types[i] == BackLink {
		return "", ErrNotBacklinkName
	}
	return s.names[i], nil
}

// Attr returns column i's attribute bitmask.
func (s *Spec) Attr(i int) (ColumnAttr, error) {
	if i < 0 || i >= len(s.types) {
		return 0, fmt.Errorf("spec.Attr(%d): %w", i, ErrOutOfRange)
	}
	return s.attrs[i], nil
}

// HasStrongLinkColumns reports whether any column carries AttrStrongLinks.
func (s *Spec) HasStrongLinkColumns() bool { return s.hasStrongLinkColumns }

func (s *Spec) updateHasStrongLinkColumns() {
	for _, a := range s.attrs {
		if a&AttrStrongLinks != 0 {
			s.hasStrongLinkColumns = true
			return
		}
	}
	s.hasStrongLinkColumns = false
}

// GetSubspecNdx returns the subspecs-array offset column i's entry (if
// any) starts at: the sum of entries_per_type over all earlier columns
// (spec.md §4.5). Passing ColumnCount() is valid and returns the total
// subspecs length, used when appending.
func (s *Spec) GetSubspecNdx(i int) int {
	n := 0
	for j := 0; j < i && j < len(s.types); j++ {
		n += entriesPerType(s.types[j])
	}
	return n
}

// GetEnumKeysNdx is kept for data-model completeness (spec.md §3); it
// always answers 0 since no StringEnum column type exists for it to
// count (see New's doc comment).
func (s *Spec) GetEnumKeysNdx(i int) int {
	return 0
}

func insertAt[E any](s []E, i int, v E) []E {
	var zero E
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func eraseAt[E any](s []E, i int) []E {
	return append(s[:i], s[i+1:]...)
}

// InsertColumn inserts a new column at i, keeping types/names/attrs
// and the sparse subspecs array in sync (spec.md §4.5).
func (s *Spec) InsertColumn(i int, typ ColumnType, name string, attr ColumnAttr) error {
	if i < 0 || i > len(s.types) {
		return fmt.Errorf("spec.InsertColumn(%d): %w", i, ErrOutOfRange)
	}
	ndx := s.GetSubspecNdx(i)

	if typ != BackLink {
		s.names = insertAt(s.names, i, name)
	}
	s.types = insertAt(s.types, i, typ)
	s.attrs = insertAt(s.attrs, i, attr)

	switch typ {
	case Table:
		nested := New()
		s.subspecs = insertAt(s.subspecs, ndx, subspecEntry{isRef: true, nested: nested})
	case Link, LinkList:
		s.subspecs = insertAt(s.subspecs, ndx, subspecEntry{})
	case BackLink:
		s.subspecs = insertAt(s.subspecs, ndx, subspecEntry{})
		s.subspecs = insertAt(s.subspecs, ndx+1, subspecEntry{})
	}
	if isSubspecType(typ) {
		s.adjSubspecPtrs()
	}
	s.updateHasStrongLinkColumns()
	return nil
}

// EraseColumn removes column i, destroying its nested Spec if it was a
// Table column, and reindexing every remaining subspec handle.
func (s *Spec) EraseColumn(i int) error {
	if i < 0 || i >= len(s.types) {
		return fmt.Errorf("spec.EraseColumn(%d): %w", i, ErrOutOfRange)
	}
	typ := s.types[i]
	ndx := s.GetSubspecNdx(i)

	switch typ {
	case Table, Link, LinkList:
		s.subspecs = eraseAt(s.subspecs, ndx)
	case BackLink:
		s.subspecs = eraseAt(s.subspecs, ndx)
		s.subspecs = eraseAt(s.subspecs, ndx)
	}
	if isSubspecType(typ) {
		s.adjSubspecPtrs()
	}

	if typ != BackLink {
		s.names = eraseAt(s.names, i)
	}
	s.types = eraseAt(s.types, i)
	s.attrs = eraseAt(s.attrs, i)

	s.updateHasStrongLinkColumns()
	return nil
}

// adjSubspecPtrs reassigns every live nested Spec's recorded
// ndxInParent after a subspecs insert/erase (spec.md §4.5).
func (s *Spec) adjSubspecPtrs() {
	for idx := range s.subspecs {
		if e := &s.subspecs[idx]; e.isRef && e.nested != nil {
			e.nested.ndxInParent = idx
		}
	}
}

// NdxInParent returns this Spec's position within its parent's
// subspecs array; meaningful only for a Spec obtained from
// SubspecByNdx.
func (s *Spec) NdxInParent() int { return s.ndxInParent }

// SubspecByNdx returns the nested Spec at subspecs-array position ndx.
func (s *Spec) SubspecByNdx(ndx int) (*Spec, error) {
	if ndx < 0 || ndx >= len(s.subspecs) {
		return nil, fmt.Errorf("spec.SubspecByNdx(%d): %w", ndx, ErrOutOfRange)
	}
	e := &s.subspecs[ndx]
	if !e.isRef {
		return nil, ErrNotSubspecType
	}
	return e.nested, nil
}

func (s *Spec) taggedAt(ndx int) (columnar.Ref, error) {
	if ndx < 0 || ndx >= len(s.subspecs) {
		return 0, fmt.Errorf("spec.taggedAt(%d): %w", ndx, ErrOutOfRange)
	}
	e := &s.subspecs[ndx]
	if e.isRef {
		return 0, ErrNotSubspecType
	}
	return e.tagged, nil
}

func (s *Spec) setTaggedAt(ndx int, v int) error {
	if ndx < 0 || ndx >= len(s.subspecs) {
		return fmt.Errorf("spec.setTaggedAt(%d): %w", ndx, ErrOutOfRange)
	}
	e := &s.subspecs[ndx]
	if e.isRef {
		return ErrNotSubspecType
	}
	e.tagged = columnar.Tag(int64(v))
	return nil
}

// SetOppositeLinkTableNdx records the target table's group-level index
// for a Link, LinkList, or BackLink (origin-table slot) column.
func (s *Spec) SetOppositeLinkTableNdx(i, tableNdx int) error {
	if i < 0 || i >= len(s.types) {
		return fmt.Errorf("spec.SetOppositeLinkTableNdx(%d): %w", i, ErrOutOfRange)
	}
	return s.setTaggedAt(s.GetSubspecNdx(i), tableNdx)
}

// GetOppositeLinkTableNdx reads back the value SetOppositeLinkTableNdx
// wrote, validating the tagged-integer convention (spec.md §7
// InvariantViolation).
func (s *Spec) GetOppositeLinkTableNdx(i int) (int, error) {
	if i < 0 || i >= len(s.types) {
		return 0, fmt.Errorf("spec.GetOppositeLinkTableNdx(%d): %w", i, ErrOutOfRange)
	}
	tagged, err := s.taggedAt(s.GetSubspecNdx(i))
	if err != nil {
		return 0, err
	}
	if tagged == 0 {
		return 0, fmt.Errorf("spec.GetOppositeLinkTableNdx(%d): value not set: %w", i, ErrInvariantViolation)
	}
	if !tagged.IsTagged() {
		return 0, ErrInvariantViolation
	}
	return int(tagged.Untag()), nil
}

// SetBacklinkOriginColumn records a BackLink column's origin column
// index (the subspecs slot immediately after the origin-table slot).
func (s *Spec) SetBacklinkOriginColumn(backlinkCol, originCol int) error {
	if backlinkCol < 0 || backlinkCol >= len(s.types) {
		return fmt.Errorf("spec.SetBacklinkOriginColumn(%d): %w", backlinkCol, ErrOutOfRange)
	}
	if s.types[backlinkCol] != BackLink {
		return ErrNotSubspecType
	}
	return s.setTaggedAt(s.GetSubspecNdx(backlinkCol)+1, originCol)
}

// GetOriginColumnNdx reads back a BackLink column's origin column index.
func (s *Spec) GetOriginColumnNdx(backlinkCol int) (int, error) {
	if backlinkCol < 0 || backlinkCol >= len(s.types) {
		return 0, fmt.Errorf("spec.GetOriginColumnNdx(%d): %w", backlinkCol, ErrOutOfRange)
	}
	if s.types[backlinkCol] != BackLink {
		return 0, ErrNotSubspecType
	}
	tagged, err := s.taggedAt(s.GetSubspecNdx(backlinkCol) + 1)
	if err != nil {
		return 0, err
	}
	if !tagged.IsTagged() {
		return 0, ErrInvariantViolation
	}
	return int(tagged.Untag()), nil
}

// FindBacklinkColumn returns the column index of the BackLink column
// pointing back from (originTableNdx, originColNdx), if any.
func (s *Spec) FindBacklinkColumn(originTableNdx, originColNdx int) (int, bool) {
	tableTag := columnar.Tag(int64(originTableNdx))
	colTag := columnar.Tag(int64(originColNdx))
	for i, typ := range s.types {
		if typ != BackLink {
			continue
		}
		ndx := s.GetSubspecNdx(i)
		if s.subspecs[ndx].tagged == tableTag && s.subspecs[ndx+1].tagged == colTag {
			return i, true
		}
	}
	return 0, false
}

// Equal implements spec.md §4.5's equality rule: column count,
// attributes, names, and column-by-column type must agree; nested
// Table specs compare recursively; Link/LinkList additionally compare
// target table indices.
func (s *Spec) Equal(other *Spec) bool {
	if len(s.types) != len(other.types) {
		return false
	}
	for i := range s.attrs {
		if s.attrs[i] != other.attrs[i] {
			return false
		}
	}
	for i := range s.names {
		if s.names[i] != other.names[i] {
			return false
		}
	}
	for i, typ := range s.types {
		if typ != other.types[i] {
			return false
		}
		switch typ {
		case Table:
			lhs, err := s.SubspecByNdx(s.GetSubspecNdx(i))
			if err != nil {
				return false
			}
			rhs, err := other.SubspecByNdx(other.GetSubspecNdx(i))
			if err != nil {
				return false
			}
			if !lhs.Equal(rhs) {
				return false
			}
		case Link, LinkList:
			lhsNdx, err1 := s.GetOppositeLinkTableNdx(i)
			rhsNdx, err2 := other.GetOppositeLinkTableNdx(i)
			if err1 != nil || err2 != nil || lhsNdx != rhsNdx {
				return false
			}
		}
	}
	return true
}
