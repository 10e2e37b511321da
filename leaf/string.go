// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package leaf

import (
	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/bptree"
	"github.com/dacapoday/columnar/header"
)

// stringSmallCap, stringMediumCap are the upgrade thresholds of
// spec.md §4.3's string chain: small(≤15) → medium(≤63) → big(∞).
const (
	stringSmallCap  = 15
	stringMediumCap = 63
)

var (
	stringSmallEnc  = small{cap: stringSmallCap}
	stringMediumEnc = indirect{contextBit: false}
	stringBigEnc    = indirect{contextBit: true}
)

// stringTier reports which tier of the upgrade chain can hold a value
// of length n: 0 = small, 1 = medium, 2 = big.
func stringTier(n int) int {
	switch {
	case n <= stringSmallCap:
		return 0
	case n <= stringMediumCap:
		return 1
	default:
		return 2
	}
}

func currentStringTier(h header.Header) int {
	if !h.HasRefs {
		return 0
	}
	if !h.ContextBit {
		return 1
	}
	return 2
}

// StringLeaf implements bptree.LeafHandler[string] over the three-tier
// small/medium/big-blob chain (spec.md §4.3). It never downgrades: a
// leaf's tier only ever increases, driven by the longest value it has
// ever had to hold.
type StringLeaf struct{}

var _ bptree.LeafHandler[string] = StringLeaf{}

func (StringLeaf) NewEmpty(a columnar.Arena) (columnar.Ref, error) {
	return stringSmallEnc.allocate(a, nil)
}

func (StringLeaf) Size(a columnar.Arena, ref columnar.Ref) (int, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	switch currentStringTier(header.Decode(blob)) {
	case 0:
		return stringSmallEnc.size(blob), nil
	case 1:
		return stringMediumEnc.size(blob), nil
	default:
		return stringBigEnc.size(blob), nil
	}
}

func (StringLeaf) Get(a columnar.Arena, ref columnar.Ref, ndx int) (string, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return "", err
	}
	switch currentStringTier(header.Decode(blob)) {
	case 0:
		return string(stringSmallEnc.get(blob, ndx)), nil
	case 1:
		v, err := stringMediumEnc.get(a, blob, ndx)
		return string(v), err
	default:
		v, err := stringBigEnc.get(a, blob, ndx)
		return string(v), err
	}
}

func (StringLeaf) readAll(a columnar.Arena, blob []byte, tier int) ([][]byte, error) {
	switch tier {
	case 0:
		return stringSmallEnc.readAll(blob), nil
	default:
		enc := stringMediumEnc
		if tier == 2 {
			enc = stringBigEnc
		}
		n := enc.size(blob)
		out := make([][]byte, n)
		for i := range out {
			v, err := enc.get(a, blob, i)
			if err != nil {
				return nil, err
			}
			out[i] = append([]byte(nil), v...)
		}
		return out, nil
	}
}

func allocateStringTier(a columnar.Arena, tier int, values [][]byte) (columnar.Ref, error) {
	switch tier {
	case 0:
		return stringSmallEnc.allocate(a, values)
	case 1:
		return stringMediumEnc.allocateFromValues(a, values)
	default:
		return stringBigEnc.allocateFromValues(a, values)
	}
}

// upgradeIfNeeded ensures the leaf can hold a value of the given
// length, performing the copy_leaf upgrade protocol (spec.md §4.3) when
// it cannot: allocate the target tier, copy every existing element
// across, and destroy the old leaf. It does not perform the caller's
// own mutation; that happens on the returned ref.
func (StringLeaf) upgradeIfNeeded(a columnar.Arena, ref columnar.Ref, needLen int) (newRef columnar.Ref, tier int, err error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, 0, err
	}
	cur := currentStringTier(header.Decode(blob))
	target := cur
	if t := stringTier(needLen); t > target {
		target = t
	}
	if target == cur {
		return ref, cur, nil
	}
	values, err := StringLeaf{}.readAll(a, blob, cur)
	if err != nil {
		return 0, 0, err
	}
	newRef, err = allocateStringTier(a, target, values)
	if err != nil {
		return 0, 0, err
	}
	if err := a.DestroyDeep(ref); err != nil {
		return 0, 0, err
	}
	return newRef, target, nil
}

func (h StringLeaf) Set(a columnar.Arena, ref columnar.Ref, ndx int, v string) (columnar.Ref, error) {
	ref, tier, err := h.upgradeIfNeeded(a, ref, len(v))
	if err != nil {
		return 0, err
	}
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	if tier == 0 {
		values := stringSmallEnc.readAll(blob)
		values[ndx] = []byte(v)
		return stringSmallEnc.allocate(a, values)
	}
	enc := stringMediumEnc
	if tier == 2 {
		enc = stringBigEnc
	}
	return enc.replaceAt(a, blob, ndx, []byte(v))
}

func (h StringLeaf) InsertAt(a columnar.Arena, ref columnar.Ref, ndx int, v string, n int) (columnar.Ref, bool, error) {
	ref, tier, err := h.upgradeIfNeeded(a, ref, len(v))
	if err != nil {
		return 0, false, err
	}
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values, err := h.readAll(a, blob, tier)
	if err != nil {
		return 0, false, err
	}
	grown := make([][]byte, 0, len(values)+n)
	grown = append(grown, values[:ndx]...)
	for i := 0; i < n; i++ {
		grown = append(grown, []byte(v))
	}
	grown = append(grown, values[ndx:]...)
	newRef, err := allocateStringTier(a, tier, grown)
	if err != nil {
		return 0, false, err
	}
	return newRef, len(grown) > varMaxLeafSize, nil
}

func (h StringLeaf) Split(a columnar.Arena, ref columnar.Ref) (columnar.Ref, columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, 0, err
	}
	tier := currentStringTier(header.Decode(blob))
	if tier == 0 {
		values := stringSmallEnc.readAll(blob)
		mid := len(values) / 2
		left, err := stringSmallEnc.allocate(a, values[:mid])
		if err != nil {
			return 0, 0, err
		}
		right, err := stringSmallEnc.allocate(a, values[mid:])
		return left, right, err
	}
	enc := stringMediumEnc
	if tier == 2 {
		enc = stringBigEnc
	}
	refs := enc.readRefs(blob)
	mid := len(refs) / 2
	left, err := enc.allocateFromRefs(a, refs[:mid])
	if err != nil {
		return 0, 0, err
	}
	right, err := enc.allocateFromRefs(a, refs[mid:])
	return left, right, err
}

func (h StringLeaf) EraseAt(a columnar.Arena, ref columnar.Ref, ndx int, isLast bool) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	tier := currentStringTier(header.Decode(blob))
	if tier == 0 {
		values := stringSmallEnc.readAll(blob)
		values = append(values[:ndx], values[ndx+1:]...)
		if len(values) == 0 {
			return 0, true, nil
		}
		newRef, err := stringSmallEnc.allocate(a, values)
		return newRef, false, err
	}
	enc := stringMediumEnc
	if tier == 2 {
		enc = stringBigEnc
	}
	refs := enc.readRefs(blob)
	dead := refs[ndx]
	refs = append(refs[:ndx], refs[ndx+1:]...)
	if err := a.DestroyDeep(dead); err != nil {
		return 0, false, err
	}
	if len(refs) == 0 {
		return 0, true, nil
	}
	newRef, err := enc.allocateFromRefs(a, refs)
	return newRef, false, err
}

func (h StringLeaf) WriteSlice(a columnar.Arena, ref columnar.Ref, off, n int, sink bptree.Sink) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	tier := currentStringTier(header.Decode(blob))
	values, err := h.readAll(a, blob, tier)
	if err != nil {
		return 0, err
	}
	slice := values[off : off+n]
	if tier == 0 {
		return sink.WriteBytes(stringSmallEnc.encode(slice))
	}
	enc := stringMediumEnc
	if tier == 2 {
		enc = stringBigEnc
	}
	snapRefs := make([]columnar.Ref, len(slice))
	for i, v := range slice {
		childRef, err := writeChildToSink(sink, v)
		if err != nil {
			return 0, err
		}
		snapRefs[i] = childRef
	}
	return sink.WriteBytes(enc.encode(snapRefs))
}
