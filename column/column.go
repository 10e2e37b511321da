// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package column implements the column family contract of spec.md §4.4:
// a typed value column over a bptree.Tree, with an optional search index
// kept in sync ahead of every tree mutation, and the baseline-refresh /
// attach-detach lifecycle every column shares with its table.
package column

import (
	"fmt"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/bptree"
)

// Index is the search-index collaborator a column may keep over its
// values (spec.md §4.4, component F). A column with no index passes a
// nil Index and skips every index call below.
type Index[T any] interface {
	Insert(row int, v T) error
	Set(row int, v T) error
	Erase(row int, isLast bool) error
	UpdateRef(v T, from, to int) error
	Clear() error
	FindFirst(v T) (row int, found bool, err error)
	FindAll(v T) ([]int, error)
	Count(v T) (int, error)
}

// Column is a typed value column: Integer, Bool, Float, String, and
// Binary columns are all Column[T] for their respective T, sharing one
// implementation of the size/get/set/insert/erase/move_last_over/clear
// contract. This package has no Link, LinkList, BackLink or sub-table
// column type.
type Column[T any] struct {
	tree     bptree.Tree[T]
	root     columnar.Ref
	index    Index[T]
	attached bool
}

// New constructs an attached, empty column over the given arena and
// leaf handler, with an optional search index (nil for none).
func New[T any](a columnar.Arena, handler bptree.LeafHandler[T], idx Index[T]) (*Column[T], error) {
	c := &Column[T]{tree: bptree.Tree[T]{Arena: a, Handler: handler}, index: idx}
	root, err := handler.NewEmpty(a)
	if err != nil {
		return nil, err
	}
	c.root = root
	c.attached = true
	return c, nil
}

func (c *Column[T]) checkAttached(op string) error {
	if !c.attached {
		return fmt.Errorf("column.%s: %w", op, columnar.ErrClosed)
	}
	return nil
}

// Size returns the column's row count.
func (c *Column[T]) Size() (int, error) {
	if err := c.checkAttached("Size"); err != nil {
		return 0, err
	}
	return c.tree.Size(c.root)
}

// Get returns the typed value at row i.
func (c *Column[T]) Get(i int) (T, error) {
	var zero T
	if err := c.checkAttached("Get"); err != nil {
		return zero, err
	}
	return c.tree.Get(c.root, i)
}

// Set overwrites row i with v. Per spec.md §4.4's search-index rule,
// the index is updated first, against the tree's still-current state,
// before the tree itself is mutated.
func (c *Column[T]) Set(i int, v T) error {
	if err := c.checkAttached("Set"); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Set(i, v); err != nil {
			return err
		}
	}
	root, err := c.tree.Set(c.root, i, v)
	if err != nil {
		return err
	}
	c.root = root
	return nil
}

// Insert inserts n copies of v at row i (i == bptree.End to append).
// isAppend is informational only, matching spec.md §4.4's signature;
// the tree itself detects append via bptree.End.
func (c *Column[T]) Insert(i int, v T, n int, isAppend bool) error {
	if err := c.checkAttached("Insert"); err != nil {
		return err
	}
	root, err := c.tree.Insert(c.root, i, v, n)
	if err != nil {
		return err
	}
	c.root = root
	if c.index != nil {
		for k := 0; k < n; k++ {
			row := i + k
			if i == bptree.End {
				size, err := c.tree.Size(c.root)
				if err != nil {
					return err
				}
				row = size - n + k
			}
			if err := c.index.Insert(row, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Erase removes row i. isLast tells both the tree and the index this is
// the table's final row, letting the index skip shifting suffix
// indices (spec.md §4.4).
func (c *Column[T]) Erase(i int, isLast bool) error {
	if err := c.checkAttached("Erase"); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Erase(i, isLast); err != nil {
			return err
		}
	}
	root, err := c.tree.Erase(c.root, i, isLast)
	if err != nil {
		return err
	}
	c.root = root
	return nil
}

// MoveLastOver overwrites row i with the column's last row then drops
// the last row (spec.md §4.4's defragmenting delete). The index is
// told row i is gone (without suffix shifting) and then, unless i was
// already last, that the moved value's index entry now points at i.
func (c *Column[T]) MoveLastOver(i int) error {
	if err := c.checkAttached("MoveLastOver"); err != nil {
		return err
	}
	size, err := c.tree.Size(c.root)
	if err != nil {
		return err
	}
	last := size - 1
	var lastVal T
	if i != last {
		lastVal, err = c.tree.Get(c.root, last)
		if err != nil {
			return err
		}
	}
	if c.index != nil {
		// spec.md §4.4: erase row i itself (is_last=true tells the index
		// not to shift suffix indices, since this is a move-last-over, not
		// a positional erase), then re-point last_value's entry from
		// last to i.
		if err := c.index.Erase(i, true); err != nil {
			return err
		}
		if i != last {
			if err := c.index.UpdateRef(lastVal, last, i); err != nil {
				return err
			}
		}
	}
	root, err := c.tree.MoveLastOver(c.root, i)
	if err != nil {
		return err
	}
	c.root = root
	return nil
}

// Clear empties the column but leaves it attached.
func (c *Column[T]) Clear() error {
	if err := c.checkAttached("Clear"); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Clear(); err != nil {
			return err
		}
	}
	root, err := c.tree.Clear(c.root)
	if err != nil {
		return err
	}
	c.root = root
	return nil
}

// UpdateFromParent reports whether the arena has been remapped past
// oldBaseline (spec.md §4.1, §5). The column holds only its root ref,
// never a translated address, so it has nothing of its own to
// re-resolve.
func (c *Column[T]) UpdateFromParent(oldBaseline columnar.Checkpoint) bool {
	return c.tree.Arena.UpdateFromParent(oldBaseline)
}

// RefreshAccessorTree re-synchronizes a column's accessors after a
// structural transaction boundary; plain value columns hold no nested
// accessors, so this only needs the new root (spec.md §4.4).
func (c *Column[T]) RefreshAccessorTree(newRoot columnar.Ref) {
	c.root = newRoot
	c.attached = true
}

// Detach releases the column's subtree and marks it unusable.
func (c *Column[T]) Detach() error {
	if !c.attached {
		return nil
	}
	if err := c.tree.Arena.DestroyDeep(c.root); err != nil {
		return err
	}
	c.root = 0
	c.attached = false
	return nil
}

// IsAttached reports whether the column is still usable.
func (c *Column[T]) IsAttached() bool { return c.attached }

// Root returns the column's current root ref, for a table accessor to
// persist alongside its Spec.
func (c *Column[T]) Root() columnar.Ref { return c.root }

// Write streams [offset, offset+size) to sink as a compact snapshot
// (spec.md §4.4, §6).
func (c *Column[T]) Write(offset, size, tableSize int, sink bptree.Sink) (columnar.Ref, error) {
	if err := c.checkAttached("Write"); err != nil {
		return 0, err
	}
	return c.tree.WriteSlice(c.root, offset, size, tableSize, sink)
}
