// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/arena"
	"github.com/dacapoday/columnar/bptree"
	"github.com/dacapoday/columnar/header"
)

// int64Leaf is a minimal fixed-width leaf handler used only to exercise
// the tree's split/merge/move-last-over machinery in isolation from any
// particular column's upgrade chain.
type int64Leaf struct{}

const i64Cap = 4 // small on purpose, to force splits in tests cheaply

func i64Size(blob []byte) int {
	return int(binary.LittleEndian.Uint32(blob[header.Size:]))
}

func i64Encode(values []int64) []byte {
	blob := make([]byte, header.Size+4+len(values)*8)
	header.Encode(blob, header.Header{})
	binary.LittleEndian.PutUint32(blob[header.Size:], uint32(len(values)))
	off := header.Size + 4
	for _, v := range values {
		binary.LittleEndian.PutUint64(blob[off:], uint64(v))
		off += 8
	}
	return blob
}

func i64Decode(blob []byte) []int64 {
	n := i64Size(blob)
	values := make([]int64, n)
	off := header.Size + 4
	for i := range values {
		values[i] = int64(binary.LittleEndian.Uint64(blob[off:]))
		off += 8
	}
	return values
}

func (int64Leaf) NewEmpty(a columnar.Arena) (columnar.Ref, error) {
	ref, blob, err := a.Allocate(header.Size+4, columnar.Flags{})
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(blob[header.Size:], 0)
	return ref, nil
}

func (int64Leaf) Size(a columnar.Arena, ref columnar.Ref) (int, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	return i64Size(blob), nil
}

func (int64Leaf) Get(a columnar.Arena, ref columnar.Ref, ndx int) (int64, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	return i64Decode(blob)[ndx], nil
}

func (h int64Leaf) Set(a columnar.Arena, ref columnar.Ref, ndx int, v int64) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	values := i64Decode(blob)
	values[ndx] = v
	newRef, newBlob, err := a.Allocate(len(blob), columnar.Flags{})
	if err != nil {
		return 0, err
	}
	copy(newBlob, i64Encode(values))
	return newRef, nil
}

func (h int64Leaf) InsertAt(a columnar.Arena, ref columnar.Ref, ndx int, v int64, n int) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values := i64Decode(blob)
	grown := make([]int64, 0, len(values)+n)
	grown = append(grown, values[:ndx]...)
	for i := 0; i < n; i++ {
		grown = append(grown, v)
	}
	grown = append(grown, values[ndx:]...)
	encoded := i64Encode(grown)
	newRef, newBlob, err := a.Allocate(len(encoded), columnar.Flags{})
	if err != nil {
		return 0, false, err
	}
	copy(newBlob, encoded)
	return newRef, len(grown) > i64Cap, nil
}

func (h int64Leaf) Split(a columnar.Arena, ref columnar.Ref) (columnar.Ref, columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, 0, err
	}
	values := i64Decode(blob)
	mid := len(values) / 2

	leftEnc := i64Encode(values[:mid])
	leftRef, leftBlob, err := a.Allocate(len(leftEnc), columnar.Flags{})
	if err != nil {
		return 0, 0, err
	}
	copy(leftBlob, leftEnc)

	rightEnc := i64Encode(values[mid:])
	rightRef, rightBlob, err := a.Allocate(len(rightEnc), columnar.Flags{})
	if err != nil {
		return 0, 0, err
	}
	copy(rightBlob, rightEnc)

	return leftRef, rightRef, nil
}

func (h int64Leaf) EraseAt(a columnar.Arena, ref columnar.Ref, ndx int, isLast bool) (columnar.Ref, bool, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, false, err
	}
	values := i64Decode(blob)
	values = append(values[:ndx], values[ndx+1:]...)
	if len(values) == 0 {
		return 0, true, nil
	}
	encoded := i64Encode(values)
	newRef, newBlob, err := a.Allocate(len(encoded), columnar.Flags{})
	if err != nil {
		return 0, false, err
	}
	copy(newBlob, encoded)
	return newRef, false, nil
}

func (h int64Leaf) WriteSlice(a columnar.Arena, ref columnar.Ref, off, n int, sink bptree.Sink) (columnar.Ref, error) {
	blob, err := a.Translate(ref)
	if err != nil {
		return 0, err
	}
	values := i64Decode(blob)
	return sink.WriteBytes(i64Encode(values[off : off+n]))
}

var _ bptree.LeafHandler[int64] = int64Leaf{}

type sliceSink struct {
	slots map[columnar.Ref][]byte
	next  columnar.Ref
}

func newSliceSink() *sliceSink {
	return &sliceSink{slots: make(map[columnar.Ref][]byte), next: 2}
}

func (s *sliceSink) WriteBytes(p []byte) (columnar.Ref, error) {
	ref := s.next
	s.next += 2
	cp := append([]byte(nil), p...)
	s.slots[ref] = cp
	return ref, nil
}

func newTestTree(t *testing.T) (*bptree.Tree[int64], *arena.Mem) {
	t.Helper()
	a := arena.NewMem()
	return &bptree.Tree[int64]{Arena: a, Handler: int64Leaf{}}, a
}

func collect(t *testing.T, tr *bptree.Tree[int64], root columnar.Ref) []int64 {
	t.Helper()
	size, err := tr.Size(root)
	require.NoError(t, err)
	out := make([]int64, size)
	for i := range out {
		v, err := tr.Get(root, i)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestAppendFastPathNoSplit(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)

	for i := int64(0); i < 3; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}
	require.Equal(t, []int64{0, 1, 2}, collect(t, tr, root))
}

func TestSplitExactlyAtCapacity(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}
	require.Equal(t, []int64{0, 1, 2, 3, 4}, collect(t, tr, root))

	size, err := tr.Size(root)
	require.NoError(t, err)
	require.Equal(t, 5, size)
}

func TestInsertAtMiddleShiftsTail(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	for i := int64(0); i < 4; i++ {
		root, err = tr.Insert(root, bptree.End, i*10, 1)
		require.NoError(t, err)
	}
	root, err = tr.Insert(root, 2, 999, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 10, 999, 20, 30}, collect(t, tr, root))
}

func TestEraseOfLastRow(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	for i := int64(0); i < 6; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}
	size, err := tr.Size(root)
	require.NoError(t, err)

	root, err = tr.Erase(root, size-1, true)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 3, 4}, collect(t, tr, root))
}

func TestEraseDownToEmpty(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	root, err = tr.Insert(root, bptree.End, 42, 1)
	require.NoError(t, err)

	root, err = tr.Erase(root, 0, true)
	require.NoError(t, err)
	require.Equal(t, columnar.Ref(0), root)
}

func TestMoveLastOver(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	for i := int64(0); i < 7; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}
	root, err = tr.MoveLastOver(root, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 6, 2, 3, 4, 5}, collect(t, tr, root))
}

func TestClearResetsToEmpty(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	for i := int64(0); i < 9; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}
	root, err = tr.Clear(root)
	require.NoError(t, err)
	size, err := tr.Size(root)
	require.NoError(t, err)
	require.Equal(t, 0, size)
}

func TestWriteSliceProducesIndependentSnapshot(t *testing.T) {
	tr, _ := newTestTree(t)
	root, err := tr.Handler.NewEmpty(tr.Arena)
	require.NoError(t, err)
	for i := int64(0); i < 20; i++ {
		root, err = tr.Insert(root, bptree.End, i, 1)
		require.NoError(t, err)
	}

	sink := newSliceSink()
	snapRef, err := tr.WriteSlice(root, 5, 10, 20, sink)
	require.NoError(t, err)
	require.NotZero(t, snapRef)

	snapArena := &sinkArena{slots: sink.slots}
	snapTree := &bptree.Tree[int64]{Arena: snapArena, Handler: int64Leaf{}}
	require.Equal(t, []int64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, collect(t, snapTree, snapRef))
}

// sinkArena adapts a sliceSink's written slots into a read-only
// columnar.Arena so a test can walk the snapshot it produced.
type sinkArena struct {
	slots map[columnar.Ref][]byte
}

func (s *sinkArena) Translate(ref columnar.Ref) ([]byte, error) { return s.slots[ref], nil }
func (s *sinkArena) Allocate(int, columnar.Flags) (columnar.Ref, []byte, error) {
	return 0, nil, columnar.ErrUnsupported
}
func (s *sinkArena) DestroyDeep(columnar.Ref) error            { return columnar.ErrUnsupported }
func (s *sinkArena) GetBaseline() columnar.Checkpoint           { return nil }
func (s *sinkArena) UpdateFromParent(columnar.Checkpoint) bool { return false }

var _ columnar.Arena = (*sinkArena)(nil)
