// Package buf contains overflow-safe size arithmetic shared by the allocator
// and the fork-safety table.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow int.
func MulOverflowSafe(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > 0 && b > 0 && a > math.MaxInt/b {
		return 0, false
	}
	if a < 0 && b < 0 && a < math.MaxInt/b {
		return 0, false
	}
	if a > 0 && b < 0 && b < math.MinInt/a {
		return 0, false
	}
	if a < 0 && b > 0 && a < math.MinInt/b {
		return 0, false
	}
	return a * b, true
}

// AlignUp rounds n up to the next multiple of align.
// align does not have to be a power of two. AlignUp(0, x) is 0.
//
// Returns ok = false for negative n, non-positive align, or when the rounded
// value would overflow int.
func AlignUp(n, align int) (int, bool) {
	if n < 0 || align <= 0 {
		return 0, false
	}
	rem := n % align
	if rem == 0 {
		return n, true
	}
	return AddOverflowSafe(n, align-rem)
}

// PageSpan widens [addr, addr+length) outward to page boundaries and returns
// the half-open span [start, end). page must be a power of two.
//
//	start, end, err := buf.PageSpan(addr, n, 4096)
//	if err != nil {
//	    return fmt.Errorf("forksafe: %w", err)
//	}
func PageSpan(addr uintptr, length, page int) (uintptr, uintptr, error) {
	if length < 0 {
		return 0, 0, fmt.Errorf("negative length: %d", length)
	}
	if page <= 0 || page&(page-1) != 0 {
		return 0, 0, fmt.Errorf("page size %d is not a power of two", page)
	}
	mask := uintptr(page - 1)
	last := addr + uintptr(length)
	if last < addr {
		return 0, 0, fmt.Errorf("overflow: addr=%#x + len=%d", addr, length)
	}
	start := addr &^ mask
	end := (last + mask) &^ mask
	if end < last {
		return 0, 0, fmt.Errorf("overflow: rounding %#x to page %d", last, page)
	}
	return start, end, nil
}
