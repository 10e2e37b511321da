// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import "github.com/dacapoday/columnar"

// Insert inserts n copies of v at pos (or appends, when pos == End),
// splitting leaves and inner nodes as needed and introducing a taller
// root when the root itself overflows (spec.md §4.2 "Insertion
// algorithm").
func (t *Tree[T]) Insert(root columnar.Ref, pos int, v T, n int) (columnar.Ref, error) {
	if n <= 0 {
		return root, nil
	}
	if root == 0 {
		var err error
		root, err = t.Handler.NewEmpty(t.Arena)
		if err != nil {
			return 0, err
		}
	}

	newRoot, sibling, siblingCount, err := t.insert(root, pos, v, n)
	if err != nil {
		return 0, err
	}
	if sibling == 0 {
		return newRoot, nil
	}
	leftCount, err := t.Size(newRoot)
	if err != nil {
		return 0, err
	}
	return introduceNewRoot(t.Arena, newRoot, leftCount, sibling, siblingCount)
}

func introduceNewRoot(a columnar.Arena, left columnar.Ref, leftCount int, right columnar.Ref, rightCount int) (columnar.Ref, error) {
	node := &innerNode{children: []columnar.Ref{left, right}, counts: []int{leftCount, rightCount}}
	return allocateInner(a, node)
}

// insert returns the (possibly rewritten) root, and, when a split
// occurred at this level, the new sibling ref plus its element count.
func (t *Tree[T]) insert(root columnar.Ref, pos int, v T, n int) (newRoot, sibling columnar.Ref, siblingCount int, err error) {
	inner, err := t.isInner(root)
	if err != nil {
		return 0, 0, 0, err
	}

	if !inner {
		size, err := t.Handler.Size(t.Arena, root)
		if err != nil {
			return 0, 0, 0, err
		}
		ndx := pos
		if pos == End {
			ndx = size
		}
		if ndx < 0 || ndx > size {
			return 0, 0, 0, outOfRange("Insert", pos)
		}
		newRef, overflow, err := t.Handler.InsertAt(t.Arena, root, ndx, v, n)
		if err != nil {
			return 0, 0, 0, err
		}
		if !overflow {
			return newRef, 0, 0, nil
		}
		left, right, err := t.Handler.Split(t.Arena, newRef)
		if err != nil {
			return 0, 0, 0, err
		}
		rightCount, err := t.Handler.Size(t.Arena, right)
		if err != nil {
			return 0, 0, 0, err
		}
		return left, right, rightCount, nil
	}

	blob, err := t.Arena.Translate(root)
	if err != nil {
		return 0, 0, 0, err
	}
	node, err := decodeInner(blob)
	if err != nil {
		return 0, 0, 0, err
	}

	var childIdx, offset int
	if pos == End {
		childIdx = len(node.children) - 1
		offset = End
		node.appendOptimized = true
	} else {
		childIdx, offset = node.locate(pos)
		node.appendOptimized = false
	}

	newChild, childSibling, childSiblingCount, err := t.insert(node.children[childIdx], offset, v, n)
	if err != nil {
		return 0, 0, 0, err
	}

	node.children[childIdx] = newChild
	node.counts[childIdx] += n

	if childSibling != 0 {
		node.children = append(node.children, 0)
		node.counts = append(node.counts, 0)
		copy(node.children[childIdx+2:], node.children[childIdx+1:])
		copy(node.counts[childIdx+2:], node.counts[childIdx+1:])
		node.children[childIdx+1] = childSibling
		node.counts[childIdx+1] = childSiblingCount
		node.counts[childIdx] -= childSiblingCount
	}

	if len(node.children) <= maxFanout {
		newRoot, err = allocateInner(t.Arena, node)
		return newRoot, 0, 0, err
	}

	mid := len(node.children) / 2
	left := &innerNode{
		children: append([]columnar.Ref{}, node.children[:mid]...),
		counts:   append([]int{}, node.counts[:mid]...),
	}
	right := &innerNode{
		children: append([]columnar.Ref{}, node.children[mid:]...),
		counts:   append([]int{}, node.counts[mid:]...),
	}
	leftRef, err := allocateInner(t.Arena, left)
	if err != nil {
		return 0, 0, 0, err
	}
	rightRef, err := allocateInner(t.Arena, right)
	if err != nil {
		return 0, 0, 0, err
	}
	return leftRef, rightRef, right.size(), nil
}
