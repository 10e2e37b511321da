// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package leaf

import (
	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/bptree"
	"github.com/dacapoday/columnar/header"
)

// binarySmallCap is the upgrade threshold of spec.md §4.3's binary
// chain: small(≤64) → big(∞). Binary has no medium tier.
const binarySmallCap = 64

var (
	binarySmallEnc = small{cap: binarySmallCap}
	binaryBigEnc   = indirect{contextBit: true}
)

func binaryIsBig(h header.Header) bool { return h.HasRefs }

// BytesLeaf implements bptree.LeafHandler[[]byte] over the two-tier
// small/big-blob chain (spec.md §4.3). Values returned by Get are
// freshly copied; callers may retain them.
type BytesLeaf struct{}

var _ bptree.LeafHandler[[]byte] = BytesLeaf{}

func (BytesLeaf) NewEmpty(a columnar.Arena) (columnar.Ref, error) {
	return binarySmallEnc.allocate(a, nil)
}

func (BytesLeaf) Size(a columnar.Arena, ref columnar.Ref) (int, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	if binaryIsBig(header.Decode(blob)) {
		return binaryBigEnc.size(blob), nil
	}
	return binarySmallEnc.size(blob), nil
}

func (BytesLeaf) Get(a columnar.Arena, ref columnar.Ref, ndx int) ([]byte, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return nil, err
	}
	if binaryIsBig(header.Decode(blob)) {
		v, err := binaryBigEnc.get(a, blob, ndx)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), v...), nil
	}
	return append([]byte(nil), binarySmallEnc.get(blob, ndx)...), nil
}

func (BytesLeaf) readAll(a columnar.Arena, blob []byte, big bool) ([][]byte, error) {
	if !big {
		return binarySmallEnc.readAll(blob), nil
	}
	n := binaryBigEnc.size(blob)
	out := make([][]byte, n)
	for i := range out {
		v, err := binaryBigEnc.get(a, blob, i)
		if err != nil {
			return nil, err
		}
		out[i] = append([]byte(nil), v...)
	}
	return out, nil
}

func allocateBinaryTier(a columnar.Arena, big bool, values [][]byte) (columnar.Ref, error) {
	if !big {
		return binarySmallEnc.allocate(a, values)
	}
	return binaryBigEnc.allocateFromValues(a, values)
}

func (BytesLeaf) upgradeIfNeeded(a columnar.Arena, ref columnar.Ref, needLen int) (newRef columnar.Ref, big bool, err error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	curBig := binaryIsBig(header.Decode(blob))
	targetBig := curBig || needLen > binarySmallCap
	if targetBig == curBig {
		return ref, curBig, nil
	}
	values, err := BytesLeaf{}.readAll(a, blob, curBig)
	if err != nil {
		return 0, false, err
	}
	newRef, err = allocateBinaryTier(a, targetBig, values)
	if err != nil {
		return 0, false, err
	}
	if err := a.DestroyDeep(ref); err != nil {
		return 0, false, err
	}
	return newRef, targetBig, nil
}

func (h BytesLeaf) Set(a columnar.Arena, ref columnar.Ref, ndx int, v []byte) (columnar.Ref, error) {
	ref, big, err := h.upgradeIfNeeded(a, ref, len(v))
	if err != nil {
		return 0, err
	}
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	if !big {
		values := binarySmallEnc.readAll(blob)
		values[ndx] = v
		return binarySmallEnc.allocate(a, values)
	}
	return binaryBigEnc.replaceAt(a, blob, ndx, v)
}

func (h BytesLeaf) InsertAt(a columnar.Arena, ref columnar.Ref, ndx int, v []byte, n int) (columnar.Ref, bool, error) {
	ref, big, err := h.upgradeIfNeeded(a, ref, len(v))
	if err != nil {
		return 0, false, err
	}
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values, err := h.readAll(a, blob, big)
	if err != nil {
		return 0, false, err
	}
	grown := make([][]byte, 0, len(values)+n)
	grown = append(grown, values[:ndx]...)
	for i := 0; i < n; i++ {
		grown = append(grown, v)
	}
	grown = append(grown, values[ndx:]...)
	newRef, err := allocateBinaryTier(a, big, grown)
	if err != nil {
		return 0, false, err
	}
	return newRef, len(grown) > varMaxLeafSize, nil
}

func (h BytesLeaf) Split(a columnar.Arena, ref columnar.Ref) (columnar.Ref, columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, 0, err
	}
	if !binaryIsBig(header.Decode(blob)) {
		values := binarySmallEnc.readAll(blob)
		mid := len(values) / 2
		left, err := binarySmallEnc.allocate(a, values[:mid])
		if err != nil {
			return 0, 0, err
		}
		right, err := binarySmallEnc.allocate(a, values[mid:])
		return left, right, err
	}
	refs := binaryBigEnc.readRefs(blob)
	mid := len(refs) / 2
	left, err := binaryBigEnc.allocateFromRefs(a, refs[:mid])
	if err != nil {
		return 0, 0, err
	}
	right, err := binaryBigEnc.allocateFromRefs(a, refs[mid:])
	return left, right, err
}

func (h BytesLeaf) EraseAt(a columnar.Arena, ref columnar.Ref, ndx int, isLast bool) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	if !binaryIsBig(header.Decode(blob)) {
		values := binarySmallEnc.readAll(blob)
		values = append(values[:ndx], values[ndx+1:]...)
		if len(values) == 0 {
			return 0, true, nil
		}
		newRef, err := binarySmallEnc.allocate(a, values)
		return newRef, false, err
	}
	refs := binaryBigEnc.readRefs(blob)
	dead := refs[ndx]
	refs = append(refs[:ndx], refs[ndx+1:]...)
	if err := a.DestroyDeep(dead); err != nil {
		return 0, false, err
	}
	if len(refs) == 0 {
		return 0, true, nil
	}
	newRef, err := binaryBigEnc.allocateFromRefs(a, refs)
	return newRef, false, err
}

func (h BytesLeaf) WriteSlice(a columnar.Arena, ref columnar.Ref, off, n int, sink bptree.Sink) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	big := binaryIsBig(header.Decode(blob))
	values, err := h.readAll(a, blob, big)
	if err != nil {
		return 0, err
	}
	slice := values[off : off+n]
	if !big {
		return sink.WriteBytes(binarySmallEnc.encode(slice))
	}
	snapRefs := make([]columnar.Ref, len(slice))
	for i, v := range slice {
		childRef, err := writeChildToSink(sink, v)
		if err != nil {
			return 0, err
		}
		snapRefs[i] = childRef
	}
	return sink.WriteBytes(binaryBigEnc.encode(snapRefs))
}
