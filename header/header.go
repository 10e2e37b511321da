// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package header implements the eight-byte node header every arena blob
// carries, and the three flag bits (spec.md §3) that let any reader
// classify a node blob without a typed pointer:
//
//	is_inner_bptree_node  has_refs  context_flag   meaning
//	        0                0         0           small-scalar / small-string leaf
//	        0                1         0           medium-string / indirect leaf
//	        0                1         1           big-blob leaf
//	        1                -         -           inner B+-tree node
//
// Readers must decode these bits once and dispatch; the spec requires no
// other part of a node blob to be interpreted before that dispatch happens.
package header

import "github.com/dacapoday/columnar"

// Size is the fixed byte length of a node header.
const Size = 8

const (
	bitInner   = 1 << 0
	bitHasRefs = 1 << 1
	bitContext = 1 << 2
)

// Kind is the decoded classification of a node blob.
type Kind uint8

const (
	// KindSmall covers fixed-width scalar leaves and small strings (≤15 bytes).
	KindSmall Kind = iota
	// KindMedium covers has_refs leaves without the context bit (the
	// medium string tier, strings ≤63 bytes; package leaf stores it as an
	// array of child refs).
	KindMedium
	// KindBigBlob covers one-allocation-per-value leaves (arbitrary size).
	KindBigBlob
	// KindInner covers inner B+-tree nodes.
	KindInner
)

func (k Kind) String() string {
	switch k {
	case KindSmall:
		return "small"
	case KindMedium:
		return "medium"
	case KindBigBlob:
		return "big-blob"
	case KindInner:
		return "inner"
	default:
		return "unknown"
	}
}

// Header is the decoded view of a node blob's first Size bytes.
type Header struct {
	IsInner    bool
	HasRefs    bool
	ContextBit bool
}

// Kind classifies the header per spec.md §3's bit table.
func (h Header) Kind() Kind {
	if h.IsInner {
		return KindInner
	}
	switch {
	case !h.HasRefs && !h.ContextBit:
		return KindSmall
	case h.HasRefs && !h.ContextBit:
		return KindMedium
	case h.HasRefs && h.ContextBit:
		return KindBigBlob
	default:
		// has_refs=0, context=1 is not an assigned combination.
		return KindSmall
	}
}

// Flags packs the header into the columnar.Flags shape Arena.Allocate
// expects.
func (h Header) Flags() columnar.Flags {
	return columnar.Flags{IsInner: h.IsInner, HasRefs: h.HasRefs, ContextBit: h.ContextBit}
}

// For derives a Header from the allocation flags used to create a node;
// it is the inverse of Flags, used by code paths that must stamp a
// header before the arena has returned decoded bytes.
func For(flags columnar.Flags) Header {
	return Header{IsInner: flags.IsInner, HasRefs: flags.HasRefs, ContextBit: flags.ContextBit}
}

// Decode reads the header from the first Size bytes of blob.
// Decode never fails on well-formed arena output: any value of the three
// bits is meaningful, and all other bits are reserved for future use and
// must be ignored by readers (spec.md §6, "Header bit contract").
func Decode(blob []byte) Header {
	b := blob[0]
	return Header{
		IsInner:    b&bitInner != 0,
		HasRefs:    b&bitHasRefs != 0,
		ContextBit: b&bitContext != 0,
	}
}

// Encode stamps h into the first Size bytes of blob, zeroing the
// reserved bits and the rest of the header word.
func Encode(blob []byte, h Header) {
	var b byte
	if h.IsInner {
		b |= bitInner
	}
	if h.HasRefs {
		b |= bitHasRefs
	}
	if h.ContextBit {
		b |= bitContext
	}
	blob[0] = b
	for i := 1; i < Size; i++ {
		blob[i] = 0
	}
}
