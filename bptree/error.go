package bptree

import (
	"fmt"

	"github.com/dacapoday/columnar"
)

var (
	ErrOutOfRange         = columnar.ErrOutOfRange
	ErrAllocateFailed     = columnar.ErrAllocateFailed
	ErrInvariantViolation = columnar.ErrInvariantViolation
)

func outOfRange(op string, pos int) error {
	return fmt.Errorf("bptree.%s(%d): %w", op, pos, ErrOutOfRange)
}
