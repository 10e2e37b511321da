// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package column

// Npos, passed as a range's end, means "the column's size at call time"
// (spec.md §4.4's aggregate contract).
const Npos = -1

// Numeric is the type set aggregate arithmetic (sum/average/min/max) is
// defined over.
type Numeric interface{ ~int64 | ~float64 }

func resolveRange[T any](c *Column[T], begin, end int) (int, int, error) {
	size, err := c.Size()
	if err != nil {
		return 0, 0, err
	}
	if end == Npos {
		end = size
	}
	return begin, end, nil
}

func fullRange[T any](c *Column[T], begin, end int) (bool, error) {
	size, err := c.Size()
	if err != nil {
		return false, err
	}
	return begin == 0 && end == size, nil
}

// Count returns how many rows in [begin, end) equal v. Uses the
// column's search index when present and the range spans the whole
// column; otherwise falls back to a row-by-row Get scan.
func Count[T comparable](c *Column[T], v T, begin, end int) (int, error) {
	begin, end, err := resolveRange(c, begin, end)
	if err != nil {
		return 0, err
	}
	if c.index != nil {
		if full, err := fullRange(c, begin, end); err != nil {
			return 0, err
		} else if full {
			return c.index.Count(v)
		}
	}
	n := 0
	for i := begin; i < end; i++ {
		got, err := c.Get(i)
		if err != nil {
			return 0, err
		}
		if got == v {
			n++
		}
	}
	return n, nil
}

// FindFirst returns the lowest row in [begin, end) equal to v.
func FindFirst[T comparable](c *Column[T], v T, begin, end int) (row int, found bool, err error) {
	begin, end, err = resolveRange(c, begin, end)
	if err != nil {
		return 0, false, err
	}
	if c.index != nil {
		if full, ferr := fullRange(c, begin, end); ferr != nil {
			return 0, false, ferr
		} else if full {
			return c.index.FindFirst(v)
		}
	}
	for i := begin; i < end; i++ {
		got, err := c.Get(i)
		if err != nil {
			return 0, false, err
		}
		if got == v {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// FindAll returns every row in [begin, end) equal to v, ascending.
func FindAll[T comparable](c *Column[T], v T, begin, end int) ([]int, error) {
	begin, end, err := resolveRange(c, begin, end)
	if err != nil {
		return nil, err
	}
	if c.index != nil {
		if full, ferr := fullRange(c, begin, end); ferr != nil {
			return nil, ferr
		} else if full {
			return c.index.FindAll(v)
		}
	}
	var rows []int
	for i := begin; i < end; i++ {
		got, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		if got == v {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// Sum adds every value in [begin, end).
func Sum[T Numeric](c *Column[T], begin, end int) (T, error) {
	begin, end, err := resolveRange(c, begin, end)
	if err != nil {
		var zero T
		return zero, err
	}
	var total T
	for i := begin; i < end; i++ {
		v, err := c.Get(i)
		if err != nil {
			var zero T
			return zero, err
		}
		total += v
	}
	return total, nil
}

// Average divides Sum by the range's row count; ok is false for an
// empty range.
func Average[T Numeric](c *Column[T], begin, end int) (avg float64, ok bool, err error) {
	begin, end, err = resolveRange(c, begin, end)
	if err != nil {
		return 0, false, err
	}
	if end <= begin {
		return 0, false, nil
	}
	total, err := Sum(c, begin, end)
	if err != nil {
		return 0, false, err
	}
	return float64(total) / float64(end-begin), true, nil
}

// Minimum returns the smallest value in [begin, end); ok is false for
// an empty range.
func Minimum[T Numeric](c *Column[T], begin, end int) (min T, ok bool, err error) {
	return extremum(c, begin, end, func(a, b T) bool { return a < b })
}

// Maximum returns the largest value in [begin, end); ok is false for an
// empty range.
func Maximum[T Numeric](c *Column[T], begin, end int) (max T, ok bool, err error) {
	return extremum(c, begin, end, func(a, b T) bool { return a > b })
}

func extremum[T Numeric](c *Column[T], begin, end int, better func(a, b T) bool) (T, bool, error) {
	begin, end, err := resolveRange(c, begin, end)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if end <= begin {
		var zero T
		return zero, false, nil
	}
	best, err := c.Get(begin)
	if err != nil {
		var zero T
		return zero, false, err
	}
	for i := begin + 1; i < end; i++ {
		v, err := c.Get(i)
		if err != nil {
			var zero T
			return zero, false, err
		}
		if better(v, best) {
			best = v
		}
	}
	return best, true, nil
}
