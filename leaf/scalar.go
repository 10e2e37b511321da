// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package leaf implements the leaf-node encodings of spec.md §4.3: fixed-
// width scalar leaves with no upgrade chain, and the small/medium/big-blob
// upgrade chain variable-width leaves (string, binary) dispatch to purely
// from the two header bits decoded once by package header.
package leaf

import (
	"encoding/binary"
	"math"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/bptree"
	"github.com/dacapoday/columnar/header"
)

// scalarMaxLeafSize bounds the element count of a fixed-width leaf
// before the tree must split it (spec.md §3).
const scalarMaxLeafSize = 1000

// Fixed is a fixed-width scalar leaf: every element occupies exactly
// width bytes, there is no upgrade chain (spec.md §4.3 applies only to
// string/binary), and the header carries no flag bits beyond the
// all-zero small-scalar dispatch. Encode/Decode convert a value to and
// from its width-byte wire form.
type Fixed[T any] struct {
	Width  int
	Encode func(v T, dst []byte)
	Decode func(src []byte) T
}

func (f Fixed[T]) sizeOf(blob []byte) int {
	return int(binary.LittleEndian.Uint32(blob[header.Size:]))
}

func (f Fixed[T]) bodyOffset() int { return header.Size + 4 }

func (f Fixed[T]) byteSize(count int) int { return f.bodyOffset() + count*f.Width }

// NewEmpty implements bptree.LeafHandler.
func (f Fixed[T]) NewEmpty(a columnar.Arena) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(f.byteSize(0), columnar.Flags{})
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(blob[header.Size:], 0)
	return ref, nil
}

// Size implements bptree.LeafHandler.
func (f Fixed[T]) Size(a columnar.Arena, ref columnar.Ref) (int, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	return f.sizeOf(blob), nil
}

// Get implements bptree.LeafHandler.
func (f Fixed[T]) Get(a columnar.Arena, ref columnar.Ref, ndx int) (T, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		var zero T
		return zero, err
	}
	off := f.bodyOffset() + ndx*f.Width
	return f.Decode(blob[off : off+f.Width]), nil
}

func (f Fixed[T]) readAll(blob []byte) []T {
	n := f.sizeOf(blob)
	out := make([]T, n)
	off := f.bodyOffset()
	for i := range out {
		out[i] = f.Decode(blob[off : off+f.Width])
		off += f.Width
	}
	return out
}

func (f Fixed[T]) allocate(a columnar.Arena, values []T) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(f.byteSize(len(values)), columnar.Flags{})
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(blob[header.Size:], uint32(len(values)))
	off := f.bodyOffset()
	for _, v := range values {
		f.Encode(v, blob[off:off+f.Width])
		off += f.Width
	}
	return ref, nil
}

// Set implements bptree.LeafHandler. Fixed-width leaves never upgrade,
// so Set only ever rewrites the same leaf's content.
func (f Fixed[T]) Set(a columnar.Arena, ref columnar.Ref, ndx int, v T) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	values := f.readAll(blob)
	values[ndx] = v
	return f.allocate(a, values)
}

// InsertAt implements bptree.LeafHandler.
func (f Fixed[T]) InsertAt(a columnar.Arena, ref columnar.Ref, ndx int, v T, n int) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values := f.readAll(blob)
	grown := make([]T, 0, len(values)+n)
	grown = append(grown, values[:ndx]...)
	for i := 0; i < n; i++ {
		grown = append(grown, v)
	}
	grown = append(grown, values[ndx:]...)
	newRef, err := f.allocate(a, grown)
	if err != nil {
		return 0, false, err
	}
	return newRef, len(grown) > scalarMaxLeafSize, nil
}

// Split implements bptree.LeafHandler.
func (f Fixed[T]) Split(a columnar.Arena, ref columnar.Ref) (columnar.Ref, columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, 0, err
	}
	values := f.readAll(blob)
	mid := len(values) / 2
	left, err := f.allocate(a, values[:mid])
	if err != nil {
		return 0, 0, err
	}
	right, err := f.allocate(a, values[mid:])
	if err != nil {
		return 0, 0, err
	}
	return left, right, nil
}

// EraseAt implements bptree.LeafHandler.
func (f Fixed[T]) EraseAt(a columnar.Arena, ref columnar.Ref, ndx int, isLast bool) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values := f.readAll(blob)
	values = append(values[:ndx], values[ndx+1:]...)
	if len(values) == 0 {
		return 0, true, nil
	}
	newRef, err := f.allocate(a, values)
	return newRef, false, err
}

// WriteSlice implements bptree.LeafHandler.
func (f Fixed[T]) WriteSlice(a columnar.Arena, ref columnar.Ref, off, n int, sink bptree.Sink) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	values := f.readAll(blob)[off : off+n]
	size := f.byteSize(len(values))
	out := make([]byte, size)
	header.Encode(out, header.Header{})
	binary.LittleEndian.PutUint32(out[header.Size:], uint32(len(values)))
	pos := f.bodyOffset()
	for _, v := range values {
		f.Encode(v, out[pos:pos+f.Width])
		pos += f.Width
	}
	return sink.WriteBytes(out)
}

var _ bptree.LeafHandler[int64] = Fixed[int64]{}

// Int64 is the fixed-width leaf handler for integer columns.
func Int64() Fixed[int64] {
	return Fixed[int64]{
		Width:  8,
		Encode: func(v int64, dst []byte) { binary.LittleEndian.PutUint64(dst, uint64(v)) },
		Decode: func(src []byte) int64 { return int64(binary.LittleEndian.Uint64(src)) },
	}
}

// Float64 is the fixed-width leaf handler for float columns.
func Float64() Fixed[float64] {
	return Fixed[float64]{
		Width: 8,
		Encode: func(v float64, dst []byte) {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
		},
		Decode: func(src []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(src))
		},
	}
}

// Bool is the fixed-width leaf handler for boolean columns.
func Bool() Fixed[bool] {
	return Fixed[bool]{
		Width: 1,
		Encode: func(v bool, dst []byte) {
			if v {
				dst[0] = 1
			} else {
				dst[0] = 0
			}
		},
		Decode: func(src []byte) bool { return src[0] != 0 },
	}
}
