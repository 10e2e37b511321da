// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package arena provides Mem, an in-memory reference implementation of
// columnar.Arena used to exercise the column storage core in tests.
// spec.md §1 treats the arena/allocator as an external collaborator;
// production arenas (memory-mapped, persisted) are out of this module's
// scope, but the core needs something to run against, the way
// kv_test.go exercised the teacher's bptree against an in-memory
// mem.File.
//
// Mem keeps one baseline generation for the whole arena (there is a
// single mutator, spec.md §5) and hands out a Checkpoint per
// generation so callers can implement the update_from_parent /
// refresh_accessor_tree protocol against it, grounded on the
// acquire/release checkpoint bookkeeping in the teacher's
// internal/heap.Heap.
package arena

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/atom"
	"github.com/dacapoday/columnar/header"
)

// checkpoint is a reference-counted baseline generation marker.
type checkpoint struct {
	gen uint64
	ref atomic.Int32
}

func (c *checkpoint) Acquire() { c.ref.Add(1) }
func (c *checkpoint) Release() { c.ref.Add(-1) }

var _ columnar.Checkpoint = (*checkpoint)(nil)

type state struct {
	slots map[columnar.Ref][]byte
	next  columnar.Ref
}

// Mem is a single-writer, in-memory arena. The zero value is not usable;
// call NewMem.
type Mem struct {
	atom  atom.Atom[state, *checkpoint]
	mutex sync.Mutex
}

// NewMem constructs an empty arena with a fresh baseline checkpoint.
func NewMem() *Mem {
	m := new(Mem)
	ckpt := &checkpoint{gen: 1}
	ckpt.Acquire()
	m.atom.Load(state{slots: make(map[columnar.Ref][]byte), next: 2}, ckpt)
	return m
}

// GetBaseline implements columnar.Arena.
func (m *Mem) GetBaseline() columnar.Checkpoint {
	_, ckpt := m.atom.Acquire()
	return ckpt
}

// UpdateFromParent implements columnar.Arena.
func (m *Mem) UpdateFromParent(old columnar.Checkpoint) bool {
	cur, ckpt := m.atom.Acquire()
	defer ckpt.Release()
	oldCkpt, ok := old.(*checkpoint)
	_ = cur
	return !ok || oldCkpt.gen != ckpt.gen
}

// Translate implements columnar.Arena.
func (m *Mem) Translate(ref columnar.Ref) ([]byte, error) {
	if ref == 0 {
		return nil, fmt.Errorf("arena.Translate(0): %w", columnar.ErrInvariantViolation)
	}
	st, ckpt := m.atom.Acquire()
	defer ckpt.Release()
	blob, ok := st.slots[ref]
	if !ok {
		return nil, fmt.Errorf("arena.Translate(%d): dangling ref: %w", ref, columnar.ErrInvariantViolation)
	}
	return blob, nil
}

// Allocate implements columnar.Arena.
func (m *Mem) Allocate(size int, flags columnar.Flags) (ref columnar.Ref, blob []byte, err error) {
	if size < header.Size {
		size = header.Size
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err = m.atom.Swap(func(st state) (state, *checkpoint, error) {
		ref = st.next
		st.next += 2
		blob = make([]byte, size)
		header.Encode(blob, header.For(flags))
		st.slots[ref] = blob
		ckpt := &checkpoint{gen: m.currentGen() + 1}
		ckpt.Acquire()
		return st, ckpt, nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("arena.Allocate: %w", err)
	}
	return
}

func (m *Mem) currentGen() uint64 {
	_, ckpt := m.atom.Acquire()
	defer ckpt.Release()
	return ckpt.gen
}

// DestroyDeep implements columnar.Arena. It frees ref and, when the node's
// has_refs header bit is set, recursively frees child slots: for inner
// nodes each record is an 8-byte child ref followed by an 8-byte
// per-child element count (only the first word is followed); for has_refs leaves
// (medium-string / big-blob) every 8-byte word after the header is a
// child ref. Odd (tagged-integer) words are never followed, matching the
// even/odd test spec.md §4.1 requires.
func (m *Mem) DestroyDeep(ref columnar.Ref) error {
	if ref == 0 {
		return nil
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.atom.Swap(func(st state) (state, *checkpoint, error) {
		if err := destroyDeep(st.slots, ref); err != nil {
			return st, nil, err
		}
		ckpt := &checkpoint{gen: m.currentGen() + 1}
		ckpt.Acquire()
		return st, ckpt, nil
	})
}

func destroyDeep(slots map[columnar.Ref][]byte, ref columnar.Ref) error {
	blob, ok := slots[ref]
	if !ok {
		return fmt.Errorf("arena.DestroyDeep(%d): dangling ref: %w", ref, columnar.ErrInvariantViolation)
	}
	h := header.Decode(blob)
	delete(slots, ref)
	if !h.HasRefs {
		return nil
	}

	start, stride := header.Size, 8
	if h.IsInner {
		// inner-node body: 8-byte prefix (4-byte record count, flag byte,
		// padding), then count*(8-byte child ref, 8-byte per-child element
		// count) records.
		start, stride = header.Size+8, 16
	}
	for off := start; off+8 <= len(blob); off += stride {
		word := binary.LittleEndian.Uint64(blob[off:])
		child := columnar.Ref(word)
		if child == 0 || child.IsTagged() {
			continue
		}
		if _, exists := slots[child]; !exists {
			continue
		}
		if err := destroyDeep(slots, child); err != nil {
			return err
		}
	}
	return nil
}

// AllCheckpointReleased reports whether every GetBaseline of the current
// baseline checkpoint has since been released; useful in tests to catch a
// leaked Acquire. Only the current generation is checked: a checkpoint of
// an earlier generation that is still held is not detected.
func (m *Mem) AllCheckpointReleased() bool {
	_, ckpt := m.atom.Acquire()
	defer ckpt.Release()
	// One reference is the arena's own, one is the Acquire just above.
	return ckpt.ref.Load() == 2
}
