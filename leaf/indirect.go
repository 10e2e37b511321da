// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package leaf

import (
	"encoding/binary"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/bptree"
	"github.com/dacapoday/columnar/header"
)

// varMaxLeafSize bounds the element count of a variable-width leaf
// before the tree must split it (spec.md §3).
const varMaxLeafSize = 1000

// small is the (has_refs=0, context=0) fixed-slot encoding: each value
// occupies a 1-byte length prefix plus cap zero-padded bytes, inline in
// the leaf blob. It holds a value only while len(v) <= cap.
type small struct{ cap int }

func (s small) stride() int       { return 1 + s.cap }
func (s small) bodyOffset() int   { return header.Size + 4 }
func (s small) size(blob []byte) int {
	return int(binary.LittleEndian.Uint32(blob[header.Size:]))
}
func (s small) byteSize(count int) int { return s.bodyOffset() + count*s.stride() }

func (s small) fits(v []byte) bool { return len(v) <= s.cap }

func (s small) get(blob []byte, ndx int) []byte {
	off := s.bodyOffset() + ndx*s.stride()
	n := int(blob[off])
	return blob[off+1 : off+1+n]
}

func (s small) readAll(blob []byte) [][]byte {
	n := s.size(blob)
	out := make([][]byte, n)
	for i := range out {
		out[i] = append([]byte(nil), s.get(blob, i)...)
	}
	return out
}

func (s small) encode(values [][]byte) []byte {
	blob := make([]byte, s.byteSize(len(values)))
	header.Encode(blob, header.Header{})
	binary.LittleEndian.PutUint32(blob[header.Size:], uint32(len(values)))
	off := s.bodyOffset()
	for _, v := range values {
		blob[off] = byte(len(v))
		copy(blob[off+1:off+1+len(v)], v)
		off += s.stride()
	}
	return blob
}

func (s small) allocate(a columnar.Arena, values [][]byte) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(s.byteSize(len(values)), columnar.Flags{})
	if err != nil {
		return 0, err
	}
	copy(blob, s.encode(values))
	return ref, nil
}

// indirect is the (has_refs=1) array-of-refs encoding shared by the
// medium-string tier (context=0) and the big-blob tier (context=1):
// every value is its own child allocation, the leaf blob holds one ref
// per value. The two tiers are structurally identical; only the header
// context bit and the upgrade policy around it differ (spec.md §4.3).
type indirect struct{ contextBit bool }

func (x indirect) bodyOffset() int { return header.Size + 4 }
func (x indirect) size(blob []byte) int {
	return int(binary.LittleEndian.Uint32(blob[header.Size:]))
}
func (x indirect) byteSize(count int) int { return x.bodyOffset() + count*8 }

func (x indirect) childRef(blob []byte, ndx int) columnar.Ref {
	off := x.bodyOffset() + ndx*8
	return columnar.Ref(binary.LittleEndian.Uint64(blob[off:]))
}

func (x indirect) get(a columnar.Arena, blob []byte, ndx int) ([]byte, error) {
	child, err := a.Translate(x.childRef(blob, ndx))
	if err != nil {
		return nil, err
	}
	return child[header.Size:], nil
}

func (x indirect) readRefs(blob []byte) []columnar.Ref {
	n := x.size(blob)
	out := make([]columnar.Ref, n)
	for i := range out {
		out[i] = x.childRef(blob, i)
	}
	return out
}

func (x indirect) allocateChild(a columnar.Arena, v []byte) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(header.Size+len(v), columnar.Flags{})
	if err != nil {
		return 0, err
	}
	copy(blob[header.Size:], v)
	return ref, nil
}

func (x indirect) allocateFromValues(a columnar.Arena, values [][]byte) (columnar.Ref, error) {
	refs := make([]columnar.Ref, len(values))
	for i, v := range values {
		ref, err := x.allocateChild(a, v)
		if err != nil {
			return 0, err
		}
		refs[i] = ref
	}
	return x.allocateFromRefs(a, refs)
}

func (x indirect) encode(refs []columnar.Ref) []byte {
	blob := make([]byte, x.byteSize(len(refs)))
	header.Encode(blob, header.Header{HasRefs: true, ContextBit: x.contextBit})
	binary.LittleEndian.PutUint32(blob[header.Size:], uint32(len(refs)))
	off := x.bodyOffset()
	for _, r := range refs {
		binary.LittleEndian.PutUint64(blob[off:], uint64(r))
		off += 8
	}
	return blob
}

func (x indirect) allocateFromRefs(a columnar.Arena, refs []columnar.Ref) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(x.byteSize(len(refs)), columnar.Flags{HasRefs: true, ContextBit: x.contextBit})
	if err != nil {
		return 0, err
	}
	copy(blob, x.encode(refs))
	return ref, nil
}

// writeChildToSink copies v into a node-shaped blob (header + bytes) in
// the sink's output space, mirroring how arena.Allocate stamps a header
// on every live blob.
func writeChildToSink(sink bptree.Sink, v []byte) (columnar.Ref, error) {
	blob := make([]byte, header.Size+len(v))
	header.Encode(blob, header.Header{})
	copy(blob[header.Size:], v)
	return sink.WriteBytes(blob)
}

// replaceAt rewrites one slot's child ref in place (new blob, since
// leaves are themselves COW), freeing the superseded child value: it is
// genuinely dead content under the single-writer model, not a shared
// COW version, so it is reclaimed immediately rather than left for the
// arena to notice later.
func (x indirect) replaceAt(a columnar.Arena, blob []byte, ndx int, v []byte) (columnar.Ref, error) {
	refs := x.readRefs(blob)
	old := refs[ndx]
	newChild, err := x.allocateChild(a, v)
	if err != nil {
		return 0, err
	}
	refs[ndx] = newChild
	newRef, err := x.allocateFromRefs(a, refs)
	if err != nil {
		return 0, err
	}
	if err := a.DestroyDeep(old); err != nil {
		return 0, err
	}
	return newRef, nil
}
