// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import "github.com/dacapoday/columnar"

// WriteSlice streams the size elements starting at offset to sink as a
// compact snapshot, rebuilding inner nodes as needed in the sink's
// output ref space (spec.md §6 write_slice). tableSize, the tree's full
// element count, is accepted for the column contract but not used: it is
// not passed on to LeafHandler.WriteSlice, so every leaf is written the
// same way whether or not the range covers every row.
func (t *Tree[T]) WriteSlice(root columnar.Ref, offset, size, tableSize int, sink Sink) (columnar.Ref, error) {
	if size == 0 {
		return 0, nil
	}
	chunks, err := t.collectChunks(root, offset, size, tableSize, sink, nil)
	if err != nil {
		return 0, err
	}
	return buildSnapshot(sink, chunks)
}

type chunk struct {
	ref   columnar.Ref
	count int
}

// collectChunks descends the tree, handing each leaf's overlapping
// sub-range to the leaf handler and appending the resulting output-space
// chunk to chunks.
func (t *Tree[T]) collectChunks(root columnar.Ref, offset, size, tableSize int, sink Sink, chunks []chunk) ([]chunk, error) {
	if size == 0 {
		return chunks, nil
	}
	inner, err := t.isInner(root)
	if err != nil {
		return nil, err
	}
	if !inner {
		ref, err := t.Handler.WriteSlice(t.Arena, root, offset, size, sink)
		if err != nil {
			return nil, err
		}
		return append(chunks, chunk{ref: ref, count: size}), nil
	}

	blob, err := t.Arena.Translate(root)
	if err != nil {
		return nil, err
	}
	node, err := decodeInner(blob)
	if err != nil {
		return nil, err
	}

	childIdx, childOffset := node.locate(offset)
	remaining := size
	for remaining > 0 && childIdx < len(node.children) {
		avail := node.counts[childIdx] - childOffset
		take := avail
		if take > remaining {
			take = remaining
		}
		chunks, err = t.collectChunks(node.children[childIdx], childOffset, take, tableSize, sink, chunks)
		if err != nil {
			return nil, err
		}
		remaining -= take
		childOffset = 0
		childIdx++
	}
	return chunks, nil
}

// buildSnapshot groups leaf-space chunks into a (possibly multi-level)
// inner-node tree written through sink, returning the snapshot's root
// ref. A single chunk needs no wrapper.
func buildSnapshot(sink Sink, chunks []chunk) (columnar.Ref, error) {
	for len(chunks) > 1 {
		var next []chunk
		for i := 0; i < len(chunks); i += maxFanout {
			end := i + maxFanout
			if end > len(chunks) {
				end = len(chunks)
			}
			group := chunks[i:end]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			node := &innerNode{children: make([]columnar.Ref, len(group)), counts: make([]int, len(group))}
			total := 0
			for j, c := range group {
				node.children[j] = c.ref
				node.counts[j] = c.count
				total += c.count
			}
			blob := make([]byte, innerNodeByteSize(len(node.children)))
			node.encode(blob)
			ref, err := sink.WriteBytes(blob)
			if err != nil {
				return 0, err
			}
			next = append(next, chunk{ref: ref, count: total})
		}
		chunks = next
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	return chunks[0].ref, nil
}
