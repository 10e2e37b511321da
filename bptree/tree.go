// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package bptree implements the persistent, ref-addressed B+-tree of
// spec.md §4.2: a tree of fixed fan-out over arena refs, indexed by
// dense row position rather than by key. Splits occur exactly when a
// leaf or inner node is full; erase never rebalances (move-last-over is
// the primitive the column family uses for row removal instead).
//
// The tree itself never interprets a leaf's bytes beyond the node
// header; all value-specific encoding (small/medium/big-blob upgrade,
// fixed-width scalars, ...) lives behind the LeafHandler a column
// supplies, grounded on the split/rewrite discipline worked out in the
// teacher's bptree/node.go for its own (key-sorted) pages.
package bptree

import "github.com/dacapoday/columnar"

// End requests an append when passed as the position argument to Insert.
const End = -1

// Sink is the output-stream collaborator consumed by WriteSlice
// (spec.md §6): it accepts node bytes and returns a ref in the output
// space, without this package needing to know the on-disk container
// format.
type Sink interface {
	WriteBytes(p []byte) (ref columnar.Ref, err error)
}

// LeafHandler is supplied by a column to teach the tree how to manage
// its particular leaf encoding. T is the column's logical element type
// (int64, bool, float64, []byte, ...); the tree itself stays generic
// over T and never inspects leaf bytes directly.
type LeafHandler[T any] interface {
	// NewEmpty allocates a fresh, minimally-encoded empty leaf.
	NewEmpty(a columnar.Arena) (columnar.Ref, error)
	// Size returns the element count stored in the leaf.
	Size(a columnar.Arena, ref columnar.Ref) (int, error)
	// Get returns the value at ndx within the leaf.
	Get(a columnar.Arena, ref columnar.Ref, ndx int) (T, error)
	// Set overwrites the value at ndx, upgrading the leaf's encoding in
	// place if v does not fit the current one. Set never changes the
	// leaf's element count, so it never causes a tree split.
	Set(a columnar.Arena, ref columnar.Ref, ndx int, v T) (newRef columnar.Ref, err error)
	// InsertAt inserts n copies of v at ndx, upgrading the encoding if
	// needed. overflow reports that the resulting element count exceeds
	// the leaf's capacity and the caller must call Split before the leaf
	// is considered well-formed.
	InsertAt(a columnar.Arena, ref columnar.Ref, ndx int, v T, n int) (newRef columnar.Ref, overflow bool, err error)
	// Split divides an overflowing leaf roughly in half. left replaces
	// ref in its parent slot; right is a brand new sibling leaf.
	Split(a columnar.Arena, ref columnar.Ref) (left, right columnar.Ref, err error)
	// EraseAt removes the element at ndx. isLast tells the handler this
	// row is the tree's very last element (lets it skip suffix
	// bookkeeping some encodings need on a mid-leaf erase). empty
	// reports the leaf now holds zero elements.
	EraseAt(a columnar.Arena, ref columnar.Ref, ndx int, isLast bool) (newRef columnar.Ref, empty bool, err error)
	// WriteSlice streams the n elements starting at off to sink and
	// returns the ref of the (possibly re-encoded, relocated) leaf as
	// seen in the sink's output space.
	WriteSlice(a columnar.Arena, ref columnar.Ref, off, n int, sink Sink) (columnar.Ref, error)
}

// Tree is the stateless algorithm object; the mutable state is the root
// ref a column owns and passes into every call, receiving back the
// (possibly new) root.
type Tree[T any] struct {
	Arena   columnar.Arena
	Handler LeafHandler[T]
}

func (t *Tree[T]) isInner(ref columnar.Ref) (bool, error) {
	return isInner(t.Arena, ref)
}

// Size returns the tree's element count. At a leaf root it asks the
// handler; at an inner root it sums the root's stored per-child counts
// without descending further.
func (t *Tree[T]) Size(root columnar.Ref) (int, error) {
	if root == 0 {
		return 0, nil
	}
	inner, err := t.isInner(root)
	if err != nil {
		return 0, err
	}
	if !inner {
		return t.Handler.Size(t.Arena, root)
	}
	blob, err := t.Arena.Translate(root)
	if err != nil {
		return 0, err
	}
	n, err := decodeInner(blob)
	if err != nil {
		return 0, err
	}
	return n.size(), nil
}

// GetLeaf resolves row i to its owning leaf ref and index within that
// leaf (spec.md §4.2 get_leaf).
func (t *Tree[T]) GetLeaf(root columnar.Ref, i int) (leafRef columnar.Ref, ndxInLeaf int, err error) {
	ref := root
	for {
		if ref == 0 {
			return 0, 0, outOfRange("GetLeaf", i)
		}
		inner, ierr := t.isInner(ref)
		if ierr != nil {
			return 0, 0, ierr
		}
		if !inner {
			size, serr := t.Handler.Size(t.Arena, ref)
			if serr != nil {
				return 0, 0, serr
			}
			if i < 0 || i >= size {
				return 0, 0, outOfRange("GetLeaf", i)
			}
			return ref, i, nil
		}
		blob, terr := t.Arena.Translate(ref)
		if terr != nil {
			return 0, 0, terr
		}
		node, derr := decodeInner(blob)
		if derr != nil {
			return 0, 0, derr
		}
		childIdx, offset := node.locate(i)
		if childIdx < 0 || childIdx >= len(node.children) {
			return 0, 0, outOfRange("GetLeaf", i)
		}
		ref = node.children[childIdx]
		i = offset
	}
}

// Get returns the value at row i.
func (t *Tree[T]) Get(root columnar.Ref, i int) (T, error) {
	leafRef, ndx, err := t.GetLeaf(root, i)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.Handler.Get(t.Arena, leafRef, ndx)
}

// Set overwrites row i with v. Set on a column with a search index must
// update the index before calling Set (spec.md §4.4): the tree itself
// has no index awareness.
func (t *Tree[T]) Set(root columnar.Ref, i int, v T) (newRoot columnar.Ref, err error) {
	return t.updateElem(root, i, func(leafRef columnar.Ref, ndx int) (columnar.Ref, error) {
		return t.Handler.Set(t.Arena, leafRef, ndx, v)
	})
}

// updateElem is the generic in-place walker spec.md §4.2 calls
// update_bptree_elem: it descends to the owning leaf, invokes update,
// and rewires the parent slot if the leaf's ref changed (e.g. an
// encoding upgrade replaced it). It never changes element counts, so it
// never introduces a new root.
func (t *Tree[T]) updateElem(root columnar.Ref, i int, update func(leafRef columnar.Ref, ndx int) (columnar.Ref, error)) (columnar.Ref, error) {
	if root == 0 {
		return 0, outOfRange("Set", i)
	}
	inner, err := t.isInner(root)
	if err != nil {
		return 0, err
	}
	if !inner {
		size, err := t.Handler.Size(t.Arena, root)
		if err != nil {
			return 0, err
		}
		if i < 0 || i >= size {
			return 0, outOfRange("Set", i)
		}
		return update(root, i)
	}

	blob, err := t.Arena.Translate(root)
	if err != nil {
		return 0, err
	}
	node, err := decodeInner(blob)
	if err != nil {
		return 0, err
	}
	childIdx, offset := node.locate(i)
	newChild, err := t.updateElem(node.children[childIdx], offset, update)
	if err != nil {
		return 0, err
	}
	if newChild == node.children[childIdx] {
		return root, nil
	}
	node.children[childIdx] = newChild
	return allocateInner(t.Arena, node)
}
