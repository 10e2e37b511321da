// Package columnar defines the shared vocabulary of the column storage
// engine: refs, the arena collaborator contract, and the node-header bits
// every leaf and inner node is tagged with.
//
// The arena/allocator itself is an external collaborator (see Arena) — this
// package only describes the interface the core requires of it.
package columnar

import "errors"

// Ref is an opaque, arena-local identifier for a node blob. Ref 0 means
// "null / empty subtree". A Ref with its low bit set is not a ref at all:
// it is a tagged small integer (see Tag / Untag), used by Spec's subspec
// array to store foreign table/column indices inline without an allocation.
type Ref uint64

// Tag encodes n as a small tagged integer: (n << 1) | 1. Tagged integers
// are used where a slot could otherwise hold a Ref, so that readers can
// tell the two apart by checking the low bit.
func Tag(n int64) Ref {
	return Ref(n)<<1 | 1
}

// IsTagged reports whether ref holds a tagged integer rather than a node
// reference.
func (ref Ref) IsTagged() bool {
	return ref&1 == 1
}

// Untag strips the tag bit and returns the encoded integer. The caller
// must have already verified IsTagged(); Untag does not check it, by the
// same convention the destroy-deep walk uses for the even/odd test (see
// Arena.DestroyDeep).
func (ref Ref) Untag() int64 {
	return int64(ref >> 1)
}

// Checkpoint is an arena baseline snapshot. Acquire/Release implement the
// reference-counted lifetime the arena uses to decide when a baseline (and
// everything allocated against it) can be reused. Whether a checkpoint is
// still the arena's current baseline is answered by Arena.UpdateFromParent.
type Checkpoint interface {
	Acquire()
	Release()
}

// Flags requested at allocation time; see Arena.Allocate and the header
// package for how they map onto the three node-header bits.
type Flags struct {
	IsInner    bool // is_inner_bptree_node
	HasRefs    bool // has_refs
	ContextBit bool // context_flag
}

// Arena is the external collaborator every component in this module is
// built against (spec.md §1, §4.1, §6). It is never implemented by this
// module for production use — only a minimal in-memory reference exists,
// in package arena, to exercise the core in tests.
type Arena interface {
	// Translate maps a ref to its current node-blob bytes. The returned
	// slice is only valid until the next UpdateFromParent.
	Translate(ref Ref) ([]byte, error)

	// Allocate reserves a new node blob of size bytes, stamped with the
	// header bits in flags, and returns its ref and backing bytes.
	Allocate(size int, flags Flags) (Ref, []byte, error)

	// DestroyDeep frees ref and, if its header has_refs bit is set,
	// recursively frees every child slot that is an even integer (i.e. a
	// ref, not a Tag-encoded scalar); odd slots are never followed.
	DestroyDeep(ref Ref) error

	// GetBaseline returns the checkpoint all currently translated
	// addresses were resolved against.
	GetBaseline() Checkpoint

	// UpdateFromParent reports whether the arena has been remapped past
	// oldBaseline; if so every previously translated address is invalid
	// and must be re-resolved via Translate.
	UpdateFromParent(oldBaseline Checkpoint) bool
}

var (
	// ErrClosed is returned by operations on a closed or detached handle.
	ErrClosed = errors.New("closed")

	// ErrOutOfRange is returned when an index or range argument is
	// outside the addressable size of the structure (spec.md §7
	// OutOfBounds).
	ErrOutOfRange = errors.New("out of range")

	// ErrAllocateFailed wraps an arena allocation failure (spec.md §7
	// AllocFailed).
	ErrAllocateFailed = errors.New("allocate failed")

	// ErrInvariantViolation signals structural corruption detected while
	// decoding arena-resident state: a tagged-int slot with its low bit
	// clear, or a sub-table ref that fails alignment (spec.md §7).
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUnsupported is returned for operations not valid in the current
	// state (e.g. a write to a read-only view).
	ErrUnsupported = errors.New("unsupported")
)
