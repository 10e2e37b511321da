// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import "github.com/dacapoday/columnar"

// Erase removes the element at pos. isLast tells the tree (and, through
// it, the leaf handler) that pos is the table's very last row, which
// lets some leaf encodings skip bookkeeping that only matters for a
// mid-table erase (spec.md §4.2 erase_bptree_elem). Erase never
// rebalances underfull nodes: a leaf that empties out is simply
// dropped from its parent, and a root left with a single child is
// replaced by that child (spec.md's replace_root_by_leaf).
func (t *Tree[T]) Erase(root columnar.Ref, pos int, isLast bool) (columnar.Ref, error) {
	if root == 0 {
		return 0, outOfRange("Erase", pos)
	}
	newRoot, emptied, err := t.erase(root, pos, isLast)
	if err != nil {
		return 0, err
	}
	if emptied {
		return 0, nil
	}
	return newRoot, nil
}

func (t *Tree[T]) erase(root columnar.Ref, pos int, isLast bool) (newRoot columnar.Ref, emptied bool, err error) {
	inner, err := t.isInner(root)
	if err != nil {
		return 0, false, err
	}

	if !inner {
		size, err := t.Handler.Size(t.Arena, root)
		if err != nil {
			return 0, false, err
		}
		if pos < 0 || pos >= size {
			return 0, false, outOfRange("Erase", pos)
		}
		newRef, empty, err := t.Handler.EraseAt(t.Arena, root, pos, isLast)
		if err != nil {
			return 0, false, err
		}
		if empty {
			return 0, true, nil
		}
		return newRef, false, nil
	}

	blob, err := t.Arena.Translate(root)
	if err != nil {
		return 0, false, err
	}
	node, err := decodeInner(blob)
	if err != nil {
		return 0, false, err
	}
	childIdx, offset := node.locate(pos)
	if childIdx < 0 || childIdx >= len(node.children) {
		return 0, false, outOfRange("Erase", pos)
	}

	newChild, childEmptied, err := t.erase(node.children[childIdx], offset, isLast)
	if err != nil {
		return 0, false, err
	}

	if childEmptied {
		node.children = append(node.children[:childIdx], node.children[childIdx+1:]...)
		node.counts = append(node.counts[:childIdx], node.counts[childIdx+1:]...)
	} else {
		node.children[childIdx] = newChild
		node.counts[childIdx]--
	}

	switch len(node.children) {
	case 0:
		return 0, true, nil
	case 1:
		// replace_root_by_leaf: a single remaining child needs no inner
		// wrapper above it.
		return node.children[0], false, nil
	default:
		newRoot, err = allocateInner(t.Arena, node)
		return newRoot, false, err
	}
}

// MoveLastOver overwrites the element at dst with the tree's current
// last element, then drops the last element (spec.md §4.2
// move_last_over). It is the primitive column erase uses instead of a
// rebalancing delete, matching the teacher's own move-to-front-free
// removal style.
func (t *Tree[T]) MoveLastOver(root columnar.Ref, dst int) (columnar.Ref, error) {
	size, err := t.Size(root)
	if err != nil {
		return 0, err
	}
	if dst < 0 || dst >= size {
		return 0, outOfRange("MoveLastOver", dst)
	}
	last := size - 1
	if dst != last {
		v, err := t.Get(root, last)
		if err != nil {
			return 0, err
		}
		root, err = t.Set(root, dst, v)
		if err != nil {
			return 0, err
		}
	}
	return t.Erase(root, last, true)
}

// Clear discards every element and returns a fresh empty root. The
// discarded subtree's content is not reachable from anywhere else in a
// single-writer transaction, so it is reclaimed immediately rather than
// left for the arena to notice later.
func (t *Tree[T]) Clear(root columnar.Ref) (columnar.Ref, error) {
	if root != 0 {
		if err := t.Arena.DestroyDeep(root); err != nil {
			return 0, err
		}
	}
	return t.Handler.NewEmpty(t.Arena)
}
