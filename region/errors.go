package region

import "errors"

var (
	// ErrAllocation indicates the selected path could not produce memory.
	ErrAllocation = errors.New("region: allocation failed")

	// ErrRegistration indicates fork-unsafe registration failed after memory
	// was obtained. The memory has already been released.
	ErrRegistration = errors.New("region: fork-unsafe registration failed")

	// ErrBadArgument indicates a negative size, a non-positive page size, a
	// size whose page rounding overflows, or a region from another allocator.
	ErrBadArgument = errors.New("region: bad argument")

	// ErrNotLive indicates Free was called on a nil or already released region.
	ErrNotLive = errors.New("region: region is not live")
)
